package stats

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arenanet/pkg/geom"
	"arenanet/pkg/weapon"
)

type memSink struct {
	shots   []ShotRecord
	rejects []RejectRecord
	err     error
}

func (m *memSink) RecordShot(r ShotRecord)     { m.shots = append(m.shots, r) }
func (m *memSink) RecordReject(r RejectRecord) { m.rejects = append(m.rejects, r) }
func (m *memSink) Close() error                { return m.err }

func sampleShot() ShotRecord {
	return ShotRecord{
		Arena:      "default",
		Time:       time.Unix(100, 0),
		ServerTime: 12.5,
		Shooter:    3,
		Weapon:     "sniper",
		EventIndex: 7,
		Hit:        5,
		Damage:     125,
		Headshot:   true,
		Location:   geom.V(10, 20, 30),
		RewindMs:   80,
		Padding:    45,
	}
}

func TestFanoutSkipsNilAndJoinsErrors(t *testing.T) {
	a := &memSink{}
	b := &memSink{err: errors.New("boom")}
	f := NewFanout(a, nil, b)
	require.Len(t, f, 2)

	f.RecordShot(sampleShot())
	f.RecordReject(RejectRecord{Reason: "stale"})
	assert.Len(t, a.shots, 1)
	assert.Len(t, b.rejects, 1)
	assert.ErrorContains(t, f.Close(), "boom")
}

func TestShotFromEvent(t *testing.T) {
	e := weapon.Event{
		Kind:  weapon.EventShotResolved,
		Owner: 4,
		Shot: &weapon.ShotResolved{
			Mode:          1,
			EventIndex:    9,
			Hit:           2,
			Damage:        45,
			RewindSeconds: 0.09,
			SearchOffset:  -0.015,
		},
	}
	r := ShotFromEvent("arena-1", "shock", 3.0, e)
	assert.Equal(t, int32(4), r.Shooter)
	assert.Equal(t, uint8(1), r.Mode)
	assert.InDelta(t, 90, r.RewindMs, 1e-9)
	assert.InDelta(t, -15, r.SearchMs, 1e-9)
	assert.False(t, r.Missed())
}

func TestRejectFromEvent(t *testing.T) {
	e := weapon.Event{Owner: 2, Request: &weapon.RequestOutcome{Mode: 0, EventIndex: 3, Err: weapon.ErrRejectedStale}}
	r := RejectFromEvent("a", "link", e)
	assert.Equal(t, weapon.ErrRejectedStale.Error(), r.Reason)
	assert.Equal(t, int32(3), r.EventIndex)
}

func TestLedgerWritesRows(t *testing.T) {
	db, err := OpenDB("", ":memory:")
	require.NoError(t, err)
	l, err := NewLedger(db, zerolog.Nop())
	require.NoError(t, err)

	l.RecordShot(sampleShot())
	l.RecordReject(RejectRecord{Arena: "default", Shooter: 3, Reason: "cooldown", ClientTime: 1, ServerTime: 1.1})
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	// 关闭后的记录被丢弃
	l.RecordShot(sampleShot())

	var shots []ShotRow
	require.NoError(t, db.Find(&shots).Error)
	require.Len(t, shots, 1)
	assert.Equal(t, "sniper", shots[0].Weapon)
	assert.True(t, shots[0].Headshot)

	var detail map[string]any
	require.NoError(t, json.Unmarshal(shots[0].Detail, &detail))
	assert.Equal(t, 80.0, detail["rewind_ms"])
	assert.Equal(t, []any{10.0, 20.0, 30.0}, detail["location"])

	var rejects []RejectRow
	require.NoError(t, db.Where("reason = ?", "cooldown").Find(&rejects).Error)
	require.Len(t, rejects, 1)
	assert.InDelta(t, 1.1, rejects[0].ServerTime, 1e-9)
}

type capture struct {
	points  []*write.Point
	flushed bool
}

func (c *capture) WritePoint(p *write.Point) { c.points = append(c.points, p) }
func (c *capture) Flush()                    { c.flushed = true }

func TestInfluxPoints(t *testing.T) {
	c := &capture{}
	i := &Influx{writer: c, log: zerolog.Nop()}

	i.RecordShot(sampleShot())
	i.RecordReject(RejectRecord{Arena: "default", Weapon: "link", Reason: "stale", ClientTime: 1, ServerTime: 1.25, Time: time.Unix(5, 0)})
	require.NoError(t, i.Close())
	assert.True(t, c.flushed)
	require.Len(t, c.points, 2)

	assert.Equal(t, "shot", c.points[0].Name())
	line := write.PointToLineProtocol(c.points[0], time.Nanosecond)
	assert.Contains(t, line, "hit=true")
	assert.Contains(t, line, "weapon=sniper")
	assert.Contains(t, line, "damage=125i")

	assert.Equal(t, "reject", c.points[1].Name())
	assert.Contains(t, write.PointToLineProtocol(c.points[1], time.Nanosecond), "reason=stale")
}
