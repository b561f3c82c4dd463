package parse

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"github.com/barmettlerl/minotor-sub000/model"
	"github.com/barmettlerl/minotor-sub000/storage"
)

type TransferCSV struct {
	FromStopID      string `csv:"from_stop_id"`
	ToStopID        string `csv:"to_stop_id"`
	TransferType    int8   `csv:"transfer_type"`
	MinTransferTime *int   `csv:"min_transfer_time"`
}

func parseTransferType(v int8) (model.TransferType, error) {
	if v < 0 || v > 3 {
		return 0, fmt.Errorf("invalid value '%d'", v)
	}
	return model.TransferType(v), nil
}

// ParseTransfers parses transfers.txt, a direct (already-collapsed)
// walking/cross-platform edge between two known stops. Multi-hop
// walking networks are expected to already be flattened into direct
// edges upstream of this feed.
func ParseTransfers(writer storage.FeedWriter, data io.Reader, stops map[string]bool) error {
	transferCsv := []*TransferCSV{}
	if err := gocsv.Unmarshal(data, &transferCsv); err != nil {
		return errors.Wrap(err, "unmarshaling transfers csv")
	}

	for i, t := range transferCsv {
		if t.FromStopID == "" {
			return fmt.Errorf("missing from_stop_id (row %d)", i+1)
		}
		if t.ToStopID == "" {
			return fmt.Errorf("missing to_stop_id (row %d)", i+1)
		}
		if !stops[t.FromStopID] {
			return fmt.Errorf("unknown from_stop_id '%s' (row %d)", t.FromStopID, i+1)
		}
		if !stops[t.ToStopID] {
			return fmt.Errorf("unknown to_stop_id '%s' (row %d)", t.ToStopID, i+1)
		}

		transferType, err := parseTransferType(t.TransferType)
		if err != nil {
			return errors.Wrapf(err, "parsing transfer_type (row %d)", i+1)
		}

		if t.MinTransferTime != nil && *t.MinTransferTime < 0 {
			return fmt.Errorf("negative min_transfer_time (row %d)", i+1)
		}

		err = writer.WriteTransfer(model.Transfer{
			FromStopID:      t.FromStopID,
			ToStopID:        t.ToStopID,
			Type:            transferType,
			MinTransferTime: t.MinTransferTime,
		})
		if err != nil {
			return errors.Wrapf(err, "writing transfer (row %d)", i+1)
		}
	}

	return nil
}
