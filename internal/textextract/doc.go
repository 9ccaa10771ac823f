// Package textextract pulls the coverpage text out of a gazette PDF.
//
// Two providers exist: pdftotext, which shells out to poppler through a
// services.Runner, and native, which parses the PDF in-process. Both read
// page 1 only and apply the same usability test, returning ErrRequiresOCR
// when the text layer is missing or too thin to identify the document.
package textextract
