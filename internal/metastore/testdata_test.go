package metastore

import "gazettemachine/internal/gazette"

func archivedRecord() *gazette.Record {
	rec := gazette.NewRecord("na", gazette.URLSource("https://example.org/na/31.pdf"))
	rec.SupersedeWorkingLocation(gazette.Location{Bucket: "incoming", Key: "temp/abc-31.pdf"})
	rec.Identified = true
	rec.JurisdictionName = "Namibia"
	rec.Publication = "Government Gazette"
	rec.Number = "31"
	rec.Date = "2018-01-01"
	rec.Year = "2018"
	rec.Size = 2048
	if err := rec.AssignKeys(); err != nil {
		panic(err)
	}
	return rec
}
