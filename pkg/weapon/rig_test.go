package weapon

import (
	"testing"

	"github.com/stretchr/testify/require"

	"arenanet/pkg/core"
	"arenanet/pkg/geom"
	"arenanet/pkg/latency"
	"arenanet/pkg/rewind"
	"arenanet/pkg/schedule"
)

// recorder 记录发出的消息和事件
type recorder struct {
	fires     []FireRequest
	stops     []StopRequest
	acks      []FireAck
	beams     []BeamHitReport
	stopBeams int
	events    []Event
}

func (r *recorder) SendFireRequest(m FireRequest) { r.fires = append(r.fires, m) }
func (r *recorder) SendStopRequest(m StopRequest) { r.stops = append(r.stops, m) }
func (r *recorder) SendFireAck(m FireAck)         { r.acks = append(r.acks, m) }
func (r *recorder) SendBeamHit(m BeamHitReport)   { r.beams = append(r.beams, m) }
func (r *recorder) SendStopBeam(StopBeam)         { r.stopBeams++ }
func (r *recorder) HandleWeaponEvent(e Event)     { r.events = append(r.events, e) }

func (r *recorder) shots() []ShotResolved {
	var out []ShotResolved
	for _, e := range r.events {
		if e.Kind == EventShotResolved {
			out = append(out, *e.Shot)
		}
	}
	return out
}

func (r *recorder) stateChanges() []StateChange {
	var out []StateChange
	for _, e := range r.events {
		if e.Kind == EventStateChanged {
			out = append(out, *e.State)
		}
	}
	return out
}

func (r *recorder) count(kind EventKind) int {
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

type rig struct {
	w     *Weapon
	clock *schedule.ManualClock
	rec   *recorder
	world *core.World
	owner *core.Entity
}

var openRows = []string{".....", ".....", ".....", ".....", "....."}

const laneY = 640.0

func newRig(t *testing.T, side Side, cfg Config, opts ...func(*Env)) *rig {
	t.Helper()
	m, err := core.ParseGameMap(openRows, 1)
	require.NoError(t, err)
	clock := schedule.NewManualClock(0)
	world := core.NewWorld(clock, m)
	owner := core.NewEntity(1, 0, geom.V(100, laneY, 100), nil)
	require.NoError(t, world.AddEntity(owner))

	rec := &recorder{}
	env := Env{
		Clock:    clock,
		Side:     side,
		Owner:    owner,
		World:    world,
		Tester:   rewind.New(world, rewind.DefaultConfig()),
		Outbox:   rec,
		Listener: rec,
	}
	for _, opt := range opts {
		opt(&env)
	}
	w, err := New(3, cfg, env)
	require.NoError(t, err)
	w.Equip()
	return &rig{w: w, clock: clock, rec: rec, world: world, owner: owner}
}

func withRTT(ms float64) func(*Env) {
	return func(e *Env) { e.RTT = latency.FixedRTT(ms) }
}

// at 把时钟设到 t 并推进一帧
func (r *rig) at(t float64) {
	r.clock.Set(t)
	r.w.Step(0)
}

func (r *rig) addTarget(t *testing.T, id core.EntityID, pos geom.Vec3) *core.Entity {
	t.Helper()
	e := core.NewEntity(id, 0, pos, nil)
	require.NoError(t, r.world.AddEntity(e))
	return e
}

func (r *rig) request(mode Mode, idx int32) error {
	return r.w.HandleFireRequest(FireRequest{
		Weapon:     r.w.ID,
		Mode:       mode,
		EventIndex: idx,
		ClientTime: r.clock.Now(),
	})
}

func rifle() Config {
	return Config{
		Name: "rifle",
		Modes: [NumModes]ModeConfig{
			{Name: "primary", State: StateTransactional, Kind: latency.HitScan, Refire: 0.5, Damage: 20, TraceRange: 1000},
			{Name: "secondary", State: StateTransactional, Kind: latency.Projectile, Refire: 0.5, Damage: 30, TraceRange: 1000},
		},
		PutDownTime:          0.2,
		RefirePutDownPercent: 1,
	}
}

func launcher(maxLoaded int, burst float64) Config {
	return Config{
		Name: "launcher",
		Modes: [NumModes]ModeConfig{
			{Name: "rockets", State: StateCharging, Kind: latency.Projectile, Refire: 0.5, Damage: 100, TraceRange: 1000},
			{Name: "alt", State: StateTransactional, Kind: latency.Projectile, Refire: 0.5, Damage: 50, TraceRange: 1000},
		},
		PutDownTime:          0.2,
		RefirePutDownPercent: 1,
		Charge: &ChargeConfig{
			MaxLoaded:     maxLoaded,
			FirstLoadTime: 0.5,
			LoadTime:      0.5,
			GracePeriod:   0.3,
			BurstInterval: burst,
			Patterns:      3,
		},
	}
}

func beamGun() Config {
	return Config{
		Name: "beamgun",
		Modes: [NumModes]ModeConfig{
			{Name: "plasma", State: StateTransactional, Kind: latency.Projectile, Refire: 0.2, Damage: 20, TraceRange: 1000},
			{Name: "beam", State: StateContinuousBeam, Kind: latency.HitScan, Refire: 0.12, Damage: 7, TraceRange: 1000},
		},
		PutDownTime:          0.2,
		RefirePutDownPercent: 1,
		Beam: &BeamConfig{
			DamagePerSecond: 50,
			BatchSize:       5,
			DamageCap:       40,
			RangeTolerance:  200,
			Timeout:         0.5,
		},
	}
}
