package stats

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const ledgerQueueSize = 4096

// ShotRow 射击流水
type ShotRow struct {
	ID         uint `gorm:"primaryKey"`
	CreatedAt  time.Time
	Arena      string `gorm:"index"`
	Shooter    int32  `gorm:"index"`
	Weapon     string
	Mode       uint8
	EventIndex int32
	Hit        int32
	Damage     int
	Headshot   bool
	Detail     datatypes.JSON
}

// RejectRow 拒绝流水
type RejectRow struct {
	ID         uint `gorm:"primaryKey"`
	CreatedAt  time.Time
	Arena      string `gorm:"index"`
	Shooter    int32  `gorm:"index"`
	Weapon     string
	Mode       uint8
	EventIndex int32
	Reason     string `gorm:"index"`
	ClientTime float64
	ServerTime float64
}

type shotDetail struct {
	ServerTime   float64    `json:"server_time"`
	Location     [3]float64 `json:"location"`
	Beam         bool       `json:"beam,omitempty"`
	Projectile   bool       `json:"projectile,omitempty"`
	RewindMs     float64    `json:"rewind_ms"`
	Padding      float64    `json:"padding,omitempty"`
	SearchMs     float64    `json:"search_ms,omitempty"`
	InvalidClaim bool       `json:"invalid_claim,omitempty"`
}

// OpenDB 配置了 postgres DSN 时连接 postgres，否则使用 SQLite 文件
func OpenDB(postgresDSN, sqlitePath string) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}
	if postgresDSN != "" {
		db, err := gorm.Open(postgres.New(postgres.Config{
			DSN:                  postgresDSN,
			PreferSimpleProtocol: true,
		}), gcfg)
		if err != nil {
			return nil, fmt.Errorf("连接 postgres 失败: %w", err)
		}
		return db, nil
	}

	if sqlitePath == "" {
		sqlitePath = ":memory:"
	}
	db, err := gorm.Open(sqlite.Open(sqlitePath), gcfg)
	if err != nil {
		return nil, fmt.Errorf("打开 sqlite 失败: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite 只允许单写，内存库每个连接都是独立的库
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// Ledger 异步写入数据库的流水账
type Ledger struct {
	db     *gorm.DB
	log    zerolog.Logger
	queue  chan any
	done   chan struct{}
	once   sync.Once
	mu     sync.RWMutex
	closed bool

	dropped atomic.Int64
}

// NewLedger 迁移表结构并启动写入协程
func NewLedger(db *gorm.DB, log zerolog.Logger) (*Ledger, error) {
	if err := db.AutoMigrate(&ShotRow{}, &RejectRow{}); err != nil {
		return nil, fmt.Errorf("迁移统计表失败: %w", err)
	}
	l := &Ledger{
		db:    db,
		log:   log.With().Str("component", "ledger").Logger(),
		queue: make(chan any, ledgerQueueSize),
		done:  make(chan struct{}),
	}
	go l.run()
	return l, nil
}

func (l *Ledger) enqueue(row any) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	select {
	case l.queue <- row:
	default:
		if n := l.dropped.Add(1); n%100 == 1 {
			l.log.Warn().Int64("dropped", n).Msg("统计队列已满，丢弃记录")
		}
	}
}

func (l *Ledger) RecordShot(r ShotRecord) {
	detail, err := json.Marshal(shotDetail{
		ServerTime:   r.ServerTime,
		Location:     [3]float64{r.Location.X, r.Location.Y, r.Location.Z},
		Beam:         r.Beam,
		Projectile:   r.Projectile,
		RewindMs:     r.RewindMs,
		Padding:      r.Padding,
		SearchMs:     r.SearchMs,
		InvalidClaim: r.InvalidClaim,
	})
	if err != nil {
		l.log.Error().Err(err).Msg("序列化射击详情失败")
		return
	}
	l.enqueue(&ShotRow{
		CreatedAt:  r.Time,
		Arena:      r.Arena,
		Shooter:    r.Shooter,
		Weapon:     r.Weapon,
		Mode:       r.Mode,
		EventIndex: r.EventIndex,
		Hit:        r.Hit,
		Damage:     r.Damage,
		Headshot:   r.Headshot,
		Detail:     datatypes.JSON(detail),
	})
}

func (l *Ledger) RecordReject(r RejectRecord) {
	l.enqueue(&RejectRow{
		CreatedAt:  r.Time,
		Arena:      r.Arena,
		Shooter:    r.Shooter,
		Weapon:     r.Weapon,
		Mode:       r.Mode,
		EventIndex: r.EventIndex,
		Reason:     r.Reason,
		ClientTime: r.ClientTime,
		ServerTime: r.ServerTime,
	})
}

func (l *Ledger) run() {
	defer close(l.done)
	for row := range l.queue {
		if err := l.db.Create(row).Error; err != nil {
			l.log.Error().Err(err).Msg("写入统计失败")
		}
	}
}

// Close 写完队列中的记录后返回
func (l *Ledger) Close() error {
	l.once.Do(func() {
		l.mu.Lock()
		l.closed = true
		close(l.queue)
		l.mu.Unlock()
	})
	<-l.done
	return nil
}

// DB 底层连接，供查询使用
func (l *Ledger) DB() *gorm.DB {
	return l.db
}
