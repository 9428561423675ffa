// Package core provides the ingestion pipeline for Bill-of-Quantities files.
//
// This package turns spreadsheet workbooks and delimited text files produced by
// many different organizations into validated [BOQItem] records. It has no
// transport or storage dependencies and can be used by web handlers, CLI
// tools, or tests without modification.
//
// # Architecture
//
// A run flows through these stages:
//
//  1. [DetectFormat] picks a reader from file name, media type and size
//  2. A [GridReader] ([SpreadsheetReader] or [DelimitedReader]) produces a [RawGrid]
//  3. The [ColumnMapper] finds the header row and maps columns to fields
//  4. The [DataProcessor] classifies, normalizes and validates each row
//  5. The [ResultBuilder] assembles the [ParseResult]
//
// [Pipeline] ties the stages together:
//
//	p := core.NewPipeline(core.DefaultParseConfig())
//	in, _ := core.OpenFileInput("boq.xlsx")
//	result := p.ParseAuto(ctx, in, core.WithProgress(func(pr core.Progress) {
//	    fmt.Println(pr.Phase, pr.Percent)
//	}))
//
// # Failure containment
//
// Format problems (empty, oversized or undecodable files) end a run with a
// single error and no items. Problems inside a row are recorded against that
// row and never stop the remaining rows. [ParseResult.Success] is true only
// when no error was recorded.
//
// # Background runs
//
// [RunRegistry] runs the pipeline in the background for the HTTP service,
// admits runs through a [ParseLimiter], and broadcasts [Progress] to
// subscribers until the run finishes.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - FILE001-FILE007: File errors (size, format, decoding)
//   - VAL001-VAL004: Validation errors (quantity, required text, prices)
//   - PRS001-PRS002: Parsing errors (no data, row failures)
//   - UPL001-UPL004: Upload errors (busy, expired run, cancelled, timeout)
package core
