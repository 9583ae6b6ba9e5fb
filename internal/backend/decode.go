package backend

import (
	"encoding/json"
	"errors"

	"visuallab/internal/services"
	"visuallab/internal/summary"
)

type datasetWire struct {
	RowCount          *int             `json:"rows"`
	ColumnCount       *int             `json:"columns"`
	MissingValueCount *int             `json:"missingValues"`
	Preview           []summary.Record `json:"preview"`
}

func decodeDataset(payload []byte, previewLimit int) (summary.Dataset, error) {
	if msg, ok := errorEnvelope(payload); ok {
		return summary.Dataset{}, services.Wrap(services.KindPrecondition, OperationUpload, msg, nil)
	}
	var wire datasetWire
	if err := json.Unmarshal(payload, &wire); err != nil {
		return summary.Dataset{}, services.Wrap(services.KindMalformedResponse, OperationUpload, "decode dataset summary", err)
	}
	if wire.RowCount == nil || wire.ColumnCount == nil || wire.MissingValueCount == nil {
		return summary.Dataset{}, services.Wrap(services.KindMalformedResponse, OperationUpload, "decode dataset summary",
			errors.New("rows, columns and missingValues are required"))
	}
	raw := summary.Dataset{
		RowCount:          *wire.RowCount,
		ColumnCount:       *wire.ColumnCount,
		MissingValueCount: *wire.MissingValueCount,
		Preview:           wire.Preview,
	}
	dataset, err := raw.Normalize(previewLimit)
	if err != nil {
		return summary.Dataset{}, services.Wrap(services.KindMalformedResponse, OperationUpload, "invalid dataset summary", err)
	}
	return dataset, nil
}
