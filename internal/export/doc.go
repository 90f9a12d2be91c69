// Package export writes the client record set as a spreadsheet.
//
// The table layout is computed by BuildTable, a pure function over the
// store's read API. Exporter serializes it to an .xlsx workbook and
// places the file atomically, so a failed or cancelled export never
// leaves a partial file at the destination.
package export
