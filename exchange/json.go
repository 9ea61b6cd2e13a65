package exchange

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/picsou-app/picsou/ledger"
	"github.com/picsou-app/picsou/money"
)

// jsonCodec reads and writes a JSON array of record objects. Amounts are
// strings so values round-trip exactly:
//
//	[
//	  {
//	    "date": "2023-05-01",
//	    "amount": "-42.50",
//	    "description": "Groceries",
//	    "recipient": "Corner Store",
//	    "payment_method": "Visa",
//	    "budget": "Food"
//	  }
//	]
type jsonCodec struct {
	currency string
}

type jsonOperation struct {
	Date          string `json:"date"`
	Amount        string `json:"amount"`
	Description   string `json:"description"`
	Recipient     string `json:"recipient"`
	PaymentMethod string `json:"payment_method"`
	Budget        string `json:"budget"`
}

func (c *jsonCodec) decode(r io.Reader) ([]Record, error) {
	var ops []jsonOperation
	if err := json.NewDecoder(r).Decode(&ops); err != nil {
		return nil, &ImportFormatError{Format: JSON, Err: err}
	}

	records := make([]Record, 0, len(ops))
	for i, op := range ops {
		date, err := ledger.ParseDate(op.Date)
		if err != nil {
			return nil, &ImportFormatError{Format: JSON, Line: i + 1, Err: err}
		}
		amount, err := money.Parse(op.Amount, c.currency)
		if err != nil {
			return nil, &ImportFormatError{Format: JSON, Line: i + 1, Err: err}
		}

		records = append(records, Record{
			Date:          date,
			Amount:        amount,
			Description:   op.Description,
			Recipient:     op.Recipient,
			PaymentMethod: op.PaymentMethod,
			Budget:        op.Budget,
		})
	}
	return records, nil
}

func (c *jsonCodec) encode(w io.Writer, records []Record) error {
	ops := make([]jsonOperation, 0, len(records))
	for _, rec := range records {
		ops = append(ops, jsonOperation{
			Date:          rec.Date.String(),
			Amount:        rec.Amount.Decimal().StringFixed(2),
			Description:   rec.Description,
			Recipient:     rec.Recipient,
			PaymentMethod: rec.PaymentMethod,
			Budget:        rec.Budget,
		})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(ops); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}
