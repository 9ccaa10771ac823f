package identify_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gazettemachine/internal/config"
	"gazettemachine/internal/gazette"
	"gazettemachine/internal/identify"
	"gazettemachine/internal/services"
)

const namibiaCover = `GOVERNMENT GAZETTE
OF THE
REPUBLIC OF NAMIBIA

N$4.80                 WINDHOEK - 1 January 2018
No. 31

CONTENTS
`

const botswanaCover = `
REPUBLIC OF BOTSWANA

GOVERNMENT GAZETTE
EXTRAORDINARY
Vol. LV, No. 17

GABORONE

_

23rd March, 2018

CONTENTS
Page

Notice of Revision of Public Transport Passenger Fares - G.N. No. 182 Of 2018
The Botswana Government Gazetteis printed by Department of GovernmentPrinting and Publishing Services,
`

func TestNamibiaIdentifiesCoverpage(t *testing.T) {
	rec := gazette.NewRecord("na", gazette.FileSource("/tmp/a.pdf"))
	if !identify.Namibia().Identify(rec, namibiaCover) {
		t.Fatalf("expected coverpage to be identified: %+v", rec)
	}
	if rec.Number != "31" || rec.Date != "2018-01-01" || rec.Year != "2018" {
		t.Fatalf("unexpected identity %+v", rec)
	}
	if rec.JurisdictionName != "Namibia" || rec.Publication != "Government Gazette" {
		t.Fatalf("unexpected naming %+v", rec)
	}
	if err := rec.AssignKeys(); err != nil {
		t.Fatalf("AssignKeys: %v", err)
	}
	if rec.Key != "na-government-gazette-dated-2018-01-01-no-31" {
		t.Fatalf("unexpected key %q", rec.Key)
	}
}

func TestBotswanaIdentifiesCoverpage(t *testing.T) {
	rec := gazette.NewRecord("bw", gazette.FileSource("/tmp/a.pdf"))
	if !identify.Botswana().Identify(rec, botswanaCover) {
		t.Fatalf("expected coverpage to be identified: %+v", rec)
	}
	want := gazette.Record{
		Jurisdiction:     "bw",
		JurisdictionName: "Botswana",
		Publication:      "Government Gazette",
		Date:             "2018-03-23",
		Number:           "17",
		Year:             "2018",
		Identified:       true,
	}
	if rec.Jurisdiction != want.Jurisdiction || rec.JurisdictionName != want.JurisdictionName ||
		rec.Publication != want.Publication || rec.Date != want.Date || rec.Number != want.Number ||
		rec.Year != want.Year || !rec.Identified {
		t.Fatalf("got %+v, want %+v", rec, want)
	}
}

func TestMissingMarkerLeavesRecordUntouched(t *testing.T) {
	rec := gazette.NewRecord("na", gazette.FileSource("/tmp/a.pdf"))
	before := *rec
	text := "GOVERNMENT GAZETTE\nREPUBLIC OF SOUTH AFRICA\nNo. 31\n1 January 2018\n"
	if identify.Namibia().Identify(rec, text) {
		t.Fatal("expected no match without the Namibia marker")
	}
	if rec.Jurisdiction != before.Jurisdiction || rec.Identified || rec.Number != "" || rec.Date != "" || rec.Publication != "" {
		t.Fatalf("record was modified: %+v", rec)
	}
}

func TestMissingDateIsUnidentified(t *testing.T) {
	rec := gazette.NewRecord("na", gazette.FileSource("/tmp/a.pdf"))
	text := "GOVERNMENT GAZETTE\nREPUBLIC OF NAMIBIA\nNo. 31\n"
	if identify.Namibia().Identify(rec, text) {
		t.Fatal("expected identification to fail without a date")
	}
	if rec.Identified {
		t.Fatal("record must not be marked identified")
	}
	if rec.Number != "31" {
		t.Fatalf("expected partial number, got %q", rec.Number)
	}
}

func TestStaleIdentityIsNotReused(t *testing.T) {
	rec := gazette.NewRecord("na", gazette.FileSource("/tmp/a.pdf"))
	rec.Number, rec.Date, rec.Year = "31", "2018-01-01", "2018"
	text := "GOVERNMENT GAZETTE\nREPUBLIC OF NAMIBIA\nCONTENTS\n"
	if identify.Namibia().Identify(rec, text) {
		t.Fatalf("fields from an earlier run must not identify this coverpage: %+v", rec)
	}
	if rec.Number != "" || rec.Date != "" || rec.Year != "" {
		t.Fatalf("expected stale fields cleared, got %+v", rec)
	}
}

func TestNamibiaNumberMustStandAlone(t *testing.T) {
	rec := gazette.NewRecord("na", gazette.FileSource("/tmp/a.pdf"))
	text := "GOVERNMENT GAZETTE\nREPUBLIC OF NAMIBIA\n1 January 2018\nGeneral Notice No. 31 of 2018\n"
	if identify.Namibia().Identify(rec, text) {
		t.Fatalf("inline notice numbers must not match: %+v", rec)
	}
}

func TestIdentifyIsIdempotent(t *testing.T) {
	rec := gazette.NewRecord("bw", gazette.FileSource("/tmp/a.pdf"))
	bw := identify.Botswana()
	first := bw.Identify(rec, botswanaCover)
	snapshot := *rec
	second := bw.Identify(rec, botswanaCover)
	if first != second {
		t.Fatalf("results differ: %v then %v", first, second)
	}
	if rec.Number != snapshot.Number || rec.Date != snapshot.Date || rec.Year != snapshot.Year ||
		rec.Publication != snapshot.Publication || rec.JurisdictionName != snapshot.JurisdictionName {
		t.Fatalf("fields changed: %+v vs %+v", rec, snapshot)
	}
}

func TestRegistryLookup(t *testing.T) {
	reg := identify.NewRegistry()
	id, err := reg.Lookup(" NA ")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if id.Code() != "na" {
		t.Fatalf("unexpected code %q", id.Code())
	}
	if _, err := reg.Lookup("zz"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for unknown code, got %v", err)
	}
	codes := reg.Codes()
	if len(codes) != 2 || codes[0] != "bw" || codes[1] != "na" {
		t.Fatalf("unexpected codes %v", codes)
	}
}

func TestRegistryRejectsDuplicateCodes(t *testing.T) {
	reg := identify.NewRegistry()
	if err := reg.Register(identify.Namibia()); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected duplicate registration to fail, got %v", err)
	}
}

const lesothoDefinitions = `
jurisdictions:
  - code: LS
    name: Lesotho
    publication: Government Gazette
    markers: ["LESOTHO", "GOVERNMENT GAZETTE"]
    number_pattern: '\bNo\.\s*(\d+)\b'
`

func TestParseDefinitions(t *testing.T) {
	defs, err := identify.ParseDefinitions([]byte(lesothoDefinitions))
	if err != nil {
		t.Fatalf("ParseDefinitions: %v", err)
	}
	if len(defs) != 1 || defs[0].Code() != "ls" {
		t.Fatalf("unexpected definitions %+v", defs)
	}
	rec := gazette.NewRecord("ls", gazette.FileSource("/tmp/a.pdf"))
	if !defs[0].Identify(rec, "LESOTHO GOVERNMENT GAZETTE\nVol. 63 No. 12\n5th February, 2019\n") {
		t.Fatalf("expected definition to identify: %+v", rec)
	}
	if rec.Date != "2019-02-05" || rec.Number != "12" || rec.JurisdictionName != "Lesotho" {
		t.Fatalf("unexpected identity %+v", rec)
	}
}

func TestParseDefinitionsRejectsInvalidEntries(t *testing.T) {
	cases := map[string]string{
		"no code":        "jurisdictions:\n  - publication: Gazette\n    markers: [X, Y]\n    number_pattern: '(\\d+)'\n",
		"no markers":     "jurisdictions:\n  - code: ls\n    publication: Gazette\n    number_pattern: '(\\d+)'\n",
		"one marker":     "jurisdictions:\n  - code: ls\n    publication: Gazette\n    markers: [X]\n    number_pattern: '(\\d+)'\n",
		"no group":       "jurisdictions:\n  - code: ls\n    publication: Gazette\n    markers: [X, Y]\n    number_pattern: '\\d+'\n",
		"bad date regex": "jurisdictions:\n  - code: ls\n    publication: Gazette\n    markers: [X, Y]\n    number_pattern: '(\\d+)'\n    date_pattern: '(\\d+)'\n",
		"bad yaml":       "jurisdictions: [",
	}
	for name, doc := range cases {
		if _, err := identify.ParseDefinitions([]byte(doc)); !errors.Is(err, services.ErrConfiguration) {
			t.Fatalf("%s: expected configuration error, got %v", name, err)
		}
	}
}

func TestFromConfigRejectsBuiltinOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jurisdictions.yaml")
	doc := "jurisdictions:\n  - code: na\n    publication: Gazette\n    markers: [X, Y]\n    number_pattern: '(\\d+)'\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Identify.DefinitionsPath = path
	if _, err := identify.FromConfig(&cfg); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
