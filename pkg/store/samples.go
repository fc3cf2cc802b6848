package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/sdrhub/pkg/protocol"
)

func (s *GORMStore) AppendSample(ctx context.Context, sample *Sample) error {
	rec := sampleRecord{
		NodeID:     sample.NodeID.String(),
		StreamKind: sample.Kind.String(),
		Freq:       int64(sample.Freq),
		Amp:        int16(sample.Amp),
		Lna:        int16(sample.Lna),
		Vga:        int16(sample.Vga),
		SampleRate: int64(sample.SampleRate),
		Timestamp:  sample.Timestamp,
		Data:       sample.Data,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("append sample for %s/%s: %w", sample.NodeID, sample.Kind, err)
	}
	return nil
}

// QuerySamples returns archived payloads with from <= timestamp < to in
// ascending timestamp order.
func (s *GORMStore) QuerySamples(ctx context.Context, nodeID uuid.UUID, kind protocol.StreamKind, from, to time.Time) ([]*Sample, error) {
	var records []sampleRecord
	err := s.db.WithContext(ctx).
		Where("node_id = ? AND stream_kind = ? AND timestamp >= ? AND timestamp < ?",
			nodeID.String(), kind.String(), from, to).
		Order("timestamp ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("query samples for %s/%s: %w", nodeID, kind, err)
	}

	samples := make([]*Sample, 0, len(records))
	for i := range records {
		rec := &records[i]
		id, err := uuid.Parse(rec.NodeID)
		if err != nil {
			return nil, fmt.Errorf("corrupt node_id %q in data_storage: %w", rec.NodeID, err)
		}
		samples = append(samples, &Sample{
			NodeID:     id,
			Kind:       protocol.StreamKind(rec.StreamKind),
			Freq:       uint64(rec.Freq),
			Amp:        uint8(rec.Amp),
			Lna:        uint8(rec.Lna),
			Vga:        uint8(rec.Vga),
			SampleRate: uint64(rec.SampleRate),
			Timestamp:  rec.Timestamp,
			Data:       rec.Data,
		})
	}
	return samples, nil
}
