package store

import "time"

// configRecord is the GORM model behind the config_storage table.
// The configuration itself is stored as serialized JSON so schema changes
// on NodeConfig do not require column migrations.
type configRecord struct {
	NodeID           string    `gorm:"column:node_id;primaryKey;type:varchar(36)"`
	LastSeen         time.Time `gorm:"column:last_seen"`
	ConfigSerialized string    `gorm:"column:config_serialized"`
}

func (configRecord) TableName() string {
	return "config_storage"
}

// sampleRecord is the GORM model behind the data_storage table. Gain and
// amp columns are signed because PostgreSQL has no unsigned integer types.
type sampleRecord struct {
	ID         uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	NodeID     string    `gorm:"column:node_id;type:varchar(36);index:idx_data_storage_window,priority:1"`
	StreamKind string    `gorm:"column:stream_kind;index:idx_data_storage_window,priority:2"`
	Freq       int64     `gorm:"column:freq"`
	Amp        int16     `gorm:"column:amp"`
	Lna        int16     `gorm:"column:lna"`
	Vga        int16     `gorm:"column:vga"`
	SampleRate int64     `gorm:"column:sample_rate"`
	Timestamp  time.Time `gorm:"column:timestamp;index:idx_data_storage_window,priority:3"`
	Data       []byte    `gorm:"column:data"`
}

func (sampleRecord) TableName() string {
	return "data_storage"
}

func allModels() []any {
	return []any{&configRecord{}, &sampleRecord{}}
}
