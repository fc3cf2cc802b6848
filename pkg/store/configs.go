package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/marmos91/sdrhub/pkg/protocol"
)

func (s *GORMStore) GetConfig(ctx context.Context, nodeID uuid.UUID) (protocol.NodeConfig, error) {
	var rec configRecord
	err := s.db.WithContext(ctx).
		Where("node_id = ?", nodeID.String()).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return protocol.NodeConfig{}, ErrConfigNotFound
		}
		return protocol.NodeConfig{}, fmt.Errorf("get config for %s: %w", nodeID, err)
	}
	return decodeConfig(&rec)
}

// GetOrSeedConfig returns the persisted configuration, inserting def when
// none exists. The insert uses ON CONFLICT DO NOTHING so two concurrent
// seeds for a fresh node leave exactly one row, and both callers read the
// row that won.
func (s *GORMStore) GetOrSeedConfig(ctx context.Context, nodeID uuid.UUID, def protocol.NodeConfig) (protocol.NodeConfig, error) {
	cfg, err := s.GetConfig(ctx, nodeID)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, ErrConfigNotFound) {
		return protocol.NodeConfig{}, err
	}

	serialized, err := json.Marshal(&def)
	if err != nil {
		return protocol.NodeConfig{}, fmt.Errorf("serialize default config: %w", err)
	}
	rec := configRecord{
		NodeID:           nodeID.String(),
		LastSeen:         time.Now().UTC(),
		ConfigSerialized: string(serialized),
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "node_id"}}, DoNothing: true}).
		Create(&rec).Error
	if err != nil {
		return protocol.NodeConfig{}, fmt.Errorf("seed config for %s: %w", nodeID, err)
	}

	// Read back whichever row is actually present, ours or a concurrent
	// winner's.
	return s.GetConfig(ctx, nodeID)
}

func (s *GORMStore) PutConfig(ctx context.Context, nodeID uuid.UUID, cfg protocol.NodeConfig) error {
	serialized, err := json.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("serialize config: %w", err)
	}
	rec := configRecord{
		NodeID:           nodeID.String(),
		LastSeen:         time.Now().UTC(),
		ConfigSerialized: string(serialized),
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "node_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_seen", "config_serialized"}),
		}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("put config for %s: %w", nodeID, err)
	}
	return nil
}

func (s *GORMStore) ListConfigs(ctx context.Context) ([]ConfigEntry, error) {
	var records []configRecord
	if err := s.db.WithContext(ctx).Order("node_id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list configs: %w", err)
	}

	entries := make([]ConfigEntry, 0, len(records))
	for i := range records {
		rec := &records[i]
		nodeID, err := uuid.Parse(rec.NodeID)
		if err != nil {
			return nil, fmt.Errorf("corrupt node_id %q in config_storage: %w", rec.NodeID, err)
		}
		cfg, err := decodeConfig(rec)
		if err != nil {
			return nil, err
		}
		entries = append(entries, ConfigEntry{
			NodeID:   nodeID,
			LastSeen: rec.LastSeen,
			Config:   cfg,
		})
	}
	return entries, nil
}

func decodeConfig(rec *configRecord) (protocol.NodeConfig, error) {
	var cfg protocol.NodeConfig
	if err := json.Unmarshal([]byte(rec.ConfigSerialized), &cfg); err != nil {
		return protocol.NodeConfig{}, fmt.Errorf("deserialize config for %s: %w", rec.NodeID, err)
	}
	return cfg, nil
}
