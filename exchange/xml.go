package exchange

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"github.com/picsou-app/picsou/ledger"
	"github.com/picsou-app/picsou/money"
)

// xmlCodec reads and writes an <operations> document with one self-closing
// <operation/> element per record, all fields as attributes:
//
//	<operations>
//	  <operation year="2023" month="5" day="1" amount="-42.50"
//	             budget="Food" recipient="Corner Store"
//	             paymentMethod="Visa" description="Groceries"/>
//	</operations>
type xmlCodec struct {
	currency string
}

type xmlOperations struct {
	XMLName    xml.Name       `xml:"operations"`
	Operations []xmlOperation `xml:"operation"`
}

type xmlOperation struct {
	Year          int    `xml:"year,attr"`
	Month         int    `xml:"month,attr"`
	Day           int    `xml:"day,attr"`
	Amount        string `xml:"amount,attr"`
	Budget        string `xml:"budget,attr"`
	Recipient     string `xml:"recipient,attr"`
	PaymentMethod string `xml:"paymentMethod,attr"`
	Description   string `xml:"description,attr"`
}

func (c *xmlCodec) decode(r io.Reader) ([]Record, error) {
	var doc xmlOperations
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, &ImportFormatError{Format: XML, Err: err}
	}

	records := make([]Record, 0, len(doc.Operations))
	for i, op := range doc.Operations {
		if op.Month < 1 || op.Month > 12 ||
			op.Day < 1 || op.Day > ledger.DaysInMonth(op.Year, time.Month(op.Month)) {
			return nil, &ImportFormatError{Format: XML, Line: i + 1,
				Err: fmt.Errorf("invalid date %04d-%02d-%02d", op.Year, op.Month, op.Day)}
		}
		amount, err := money.Parse(op.Amount, c.currency)
		if err != nil {
			return nil, &ImportFormatError{Format: XML, Line: i + 1, Err: err}
		}

		records = append(records, Record{
			Date:          ledger.NewDate(op.Year, time.Month(op.Month), op.Day),
			Amount:        amount,
			Description:   op.Description,
			Recipient:     op.Recipient,
			PaymentMethod: op.PaymentMethod,
			Budget:        op.Budget,
		})
	}
	return records, nil
}

func (c *xmlCodec) encode(w io.Writer, records []Record) error {
	doc := xmlOperations{Operations: make([]xmlOperation, 0, len(records))}
	for _, rec := range records {
		doc.Operations = append(doc.Operations, xmlOperation{
			Year:          rec.Date.Year(),
			Month:         int(rec.Date.Month()),
			Day:           rec.Date.Day(),
			Amount:        rec.Amount.Decimal().StringFixed(2),
			Budget:        rec.Budget,
			Recipient:     rec.Recipient,
			PaymentMethod: rec.PaymentMethod,
			Description:   rec.Description,
		})
	}

	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("write xml: %w", err)
	}
	return nil
}
