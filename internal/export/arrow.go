// Package export writes parse results to formats downstream tools consume:
// an Arrow IPC stream of items and XLSX or CSV error reports.
package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/ipc"
	"github.com/apache/arrow/go/v18/arrow/memory"

	"github.com/JonMunkholm/boqimport/internal/core"
)

// ItemSchema is the Arrow schema of exported BOQ items. Optional text and
// price columns are nullable.
var ItemSchema = arrow.NewSchema([]arrow.Field{
	{Name: "line_number", Type: arrow.PrimitiveTypes.Int64},
	{Name: "item_code", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "description", Type: arrow.BinaryTypes.String},
	{Name: "uom", Type: arrow.BinaryTypes.String},
	{Name: "quantity", Type: arrow.PrimitiveTypes.Float64},
	{Name: "phase", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "task", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "site", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "unit_price", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "total_price", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "category", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "subcategory", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "vendor", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "remarks", Type: arrow.BinaryTypes.String, Nullable: true},
}, nil)

// Field positions in ItemSchema.
const (
	colLine = iota
	colItemCode
	colDescription
	colUOM
	colQuantity
	colPhase
	colTask
	colSite
	colUnitPrice
	colTotalPrice
	colCategory
	colSubcategory
	colVendor
	colRemarks
)

// DefaultBatchSize is the number of items per Arrow record batch.
const DefaultBatchSize = 1024

// WriteItemsArrow streams the result's items to w as an Arrow IPC stream in
// batches of batchSize (DefaultBatchSize when <= 0). The schema carries the
// file name, format and counts as metadata. A result with no items still
// produces a valid, empty stream.
func WriteItemsArrow(w io.Writer, r core.ParseResult, batchSize int) error {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	schema := withRunMetadata(r)
	pool := memory.NewGoAllocator()

	iw := ipc.NewWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(pool))

	b := array.NewRecordBuilder(pool, schema)
	defer b.Release()

	for start := 0; start < len(r.Items); start += batchSize {
		end := min(start+batchSize, len(r.Items))
		for _, it := range r.Items[start:end] {
			appendItem(b, it)
		}

		rec := b.NewRecord()
		err := iw.Write(rec)
		rec.Release()
		if err != nil {
			iw.Close()
			return fmt.Errorf("write arrow batch at item %d: %w", start, err)
		}
	}

	if err := iw.Close(); err != nil {
		return fmt.Errorf("close arrow stream: %w", err)
	}
	return nil
}

func withRunMetadata(r core.ParseResult) *arrow.Schema {
	m := r.Metadata
	md := arrow.NewMetadata(
		[]string{"file_name", "format", "success", "total_rows", "invalid_rows"},
		[]string{
			m.FileName,
			m.DetectedFormat.String(),
			strconv.FormatBool(r.Success),
			strconv.Itoa(m.TotalRows),
			strconv.Itoa(m.InvalidRows),
		},
	)
	return arrow.NewSchema(ItemSchema.Fields(), &md)
}

func appendItem(b *array.RecordBuilder, it core.BOQItem) {
	b.Field(colLine).(*array.Int64Builder).Append(int64(it.LineNumber))
	appendText(b.Field(colItemCode), it.ItemCode)
	b.Field(colDescription).(*array.StringBuilder).Append(it.Description)
	b.Field(colUOM).(*array.StringBuilder).Append(it.UOM)
	b.Field(colQuantity).(*array.Float64Builder).Append(it.Quantity)
	appendText(b.Field(colPhase), it.Phase)
	appendText(b.Field(colTask), it.Task)
	appendText(b.Field(colSite), it.Site)
	appendPrice(b.Field(colUnitPrice), it.UnitPrice)
	appendPrice(b.Field(colTotalPrice), it.TotalPrice)
	appendText(b.Field(colCategory), it.Category)
	appendText(b.Field(colSubcategory), it.Subcategory)
	appendText(b.Field(colVendor), it.Vendor)
	appendText(b.Field(colRemarks), it.Remarks)
}

func appendText(fb array.Builder, s string) {
	sb := fb.(*array.StringBuilder)
	if s == "" {
		sb.AppendNull()
		return
	}
	sb.Append(s)
}

func appendPrice(fb array.Builder, v *float64) {
	pb := fb.(*array.Float64Builder)
	if v == nil {
		pb.AppendNull()
		return
	}
	pb.Append(*v)
}
