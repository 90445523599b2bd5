package model

// ProfileItem is the current value of one key of a profile's persistent
// local storage.
type ProfileItem struct {
	Key   string `json:"key" gorm:"primaryKey;column:name;size:255"`
	Value string `json:"value" gorm:"type:text"`
	Rev   int64  `json:"rev"`
}

// ProfileEvent records one write to a profile. Events are append-only so
// every write reaches other processes, even several to the same key
// between two polls.
type ProfileEvent struct {
	Rev     int64  `json:"rev" gorm:"primaryKey;autoIncrement:false"`
	Key     string `json:"key" gorm:"column:name;size:255"`
	Value   string `json:"value" gorm:"type:text"`
	Origin  string `json:"origin" gorm:"size:64"`
	Deleted bool   `json:"deleted"`
	Created int64  `json:"created" gorm:"autoCreateTime:milli;index"`
}

// ProfileRev is the single counter row that hands out event revisions.
type ProfileRev struct {
	ID  uint  `gorm:"primaryKey;autoIncrement:false"`
	Rev int64 `gorm:"not null;default:0"`
}
