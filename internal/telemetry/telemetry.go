package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"arenanet/pkg/weapon"
)

const instrumentationName = "arenanet"

// Metrics 开火同步相关的计数器。导出方式由进程安装的 MeterProvider 决定。
type Metrics struct {
	requests  metric.Int64Counter
	watchdog  metric.Int64Counter
	resolved  metric.Int64Counter
	beams     metric.Int64Counter
	desyncs   metric.Int64Counter
	rewindSec metric.Float64Histogram
}

// Default 使用全局 MeterProvider
func Default() (*Metrics, error) {
	return New(otel.Meter(instrumentationName))
}

func New(m metric.Meter) (*Metrics, error) {
	var (
		mt   Metrics
		err  error
		errs []error
	)
	mt.requests, err = m.Int64Counter("arenanet.fire.requests",
		metric.WithDescription("远端开火请求，按处理结果分类"))
	errs = append(errs, err)
	mt.watchdog, err = m.Int64Counter("arenanet.fire.watchdog_stops",
		metric.WithDescription("看门狗强制停火次数"))
	errs = append(errs, err)
	mt.resolved, err = m.Int64Counter("arenanet.shots.resolved",
		metric.WithDescription("权威端结算的射击"))
	errs = append(errs, err)
	mt.beams, err = m.Int64Counter("arenanet.beam.reports",
		metric.WithDescription("光束伤害上报"))
	errs = append(errs, err)
	mt.desyncs, err = m.Int64Counter("arenanet.fire.desyncs",
		metric.WithDescription("客户端序号被纠正次数"))
	errs = append(errs, err)
	mt.rewindSec, err = m.Float64Histogram("arenanet.rewind.seconds",
		metric.WithDescription("命中检测的回溯时间"),
		metric.WithUnit("s"))
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &mt, nil
}

// Outcome 请求处理结果的标签值
func Outcome(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case errors.Is(err, weapon.ErrRejectedStale):
		return "stale"
	case errors.Is(err, weapon.ErrRejectedOutOfWindow):
		return "out_of_window"
	case errors.Is(err, weapon.ErrRejectedClockSkew):
		return "clock_skew"
	case errors.Is(err, weapon.ErrRejectedCooldown):
		return "cooldown"
	case errors.Is(err, weapon.ErrFireGated):
		return "gated"
	case errors.Is(err, weapon.ErrNotEquipped):
		return "not_equipped"
	case errors.Is(err, weapon.ErrInvalidMode):
		return "invalid_mode"
	default:
		return "other"
	}
}

// Observe 按武器事件累加计数
func (m *Metrics) Observe(ctx context.Context, e weapon.Event) {
	if m == nil {
		return
	}
	switch e.Kind {
	case weapon.EventRequest:
		m.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", Outcome(e.Request.Err))))
	case weapon.EventStateChanged:
		if e.State.Reason == weapon.ReasonWatchdog {
			m.watchdog.Add(ctx, 1)
		}
	case weapon.EventShotResolved:
		attrs := metric.WithAttributes(attribute.Bool("hit", e.Shot.Hit != 0))
		if e.Shot.Beam {
			m.beams.Add(ctx, 1, metric.WithAttributes(attribute.Bool("accepted", true)))
			return
		}
		m.resolved.Add(ctx, 1, attrs)
		if !e.Shot.Projectile {
			m.rewindSec.Record(ctx, e.Shot.RewindSeconds+e.Shot.SearchOffset)
		}
	case weapon.EventDesync:
		m.desyncs.Add(ctx, 1)
	}
}

// BeamRejected 光束上报未通过校验
func (m *Metrics) BeamRejected(ctx context.Context, err error) {
	if m == nil {
		return
	}
	m.beams.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("accepted", false),
		attribute.String("reason", beamReason(err)),
	))
}

func beamReason(err error) string {
	switch {
	case errors.Is(err, weapon.ErrBeamOutOfRange):
		return "out_of_range"
	case errors.Is(err, weapon.ErrBeamTargetMissing):
		return "target_missing"
	case errors.Is(err, weapon.ErrBeamDamage):
		return "damage"
	case errors.Is(err, weapon.ErrBeamInactive):
		return "inactive"
	default:
		return "other"
	}
}
