package exchange

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/picsou-app/picsou/ledger"
	"github.com/picsou-app/picsou/money"
)

// csvCodec reads and writes one operation per row:
//
//	date,amount,"description","recipient","payment method","budget"
//	2023-05-01,-42.50,"Groceries","Corner Store","Visa","Food"
//
// There is no header row. Quoting follows RFC 4180, so embedded commas and
// quotes round-trip.
type csvCodec struct {
	currency string
}

const csvFields = 6

func (c *csvCodec) decode(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = csvFields

	var records []Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			line := 0
			if perr, ok := err.(*csv.ParseError); ok {
				line = perr.Line
			}
			return nil, &ImportFormatError{Format: CSV, Line: line, Err: err}
		}

		line, _ := reader.FieldPos(0)
		date, err := ledger.ParseDate(row[0])
		if err != nil {
			return nil, &ImportFormatError{Format: CSV, Line: line, Err: err}
		}
		amount, err := money.Parse(row[1], c.currency)
		if err != nil {
			return nil, &ImportFormatError{Format: CSV, Line: line, Err: err}
		}

		records = append(records, Record{
			Date:          date,
			Amount:        amount,
			Description:   row[2],
			Recipient:     row[3],
			PaymentMethod: row[4],
			Budget:        row[5],
		})
	}
	return records, nil
}

func (c *csvCodec) encode(w io.Writer, records []Record) error {
	writer := csv.NewWriter(w)
	for _, rec := range records {
		row := []string{
			rec.Date.String(),
			rec.Amount.Decimal().StringFixed(2),
			rec.Description,
			rec.Recipient,
			rec.PaymentMethod,
			rec.Budget,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}
