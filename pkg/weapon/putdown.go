package weapon

import "arenanet/pkg/schedule"

// PutDown 请求收起武器，返回是否已立即完成。
// 未完成时由定时任务或蓄力恢复阶段结束后继续。
func (w *Weapon) PutDown() bool {
	if !w.equipped {
		w.switching = false
		return true
	}
	w.switching = true

	if w.state == StateCharging && w.charge != nil {
		return w.charge.putDown()
	}

	remaining := w.tasks.Remaining(schedule.RoleRefire)
	switch w.state {
	case StateTransactional:
		m := w.current
		w.pending[m] = false
		if w.env.Side == SideClient {
			w.env.Outbox.SendStopRequest(StopRequest{Weapon: w.ID, Mode: m, EventIndex: w.slots[m].ClientIndex, ClientTime: w.now()})
		}
		w.stopTransactional(m, ReasonPutDown)
	case StateContinuousBeam:
		w.pending[w.current] = false
		if w.env.Side == SideClient {
			w.env.Outbox.SendStopBeam(StopBeam{Weapon: w.ID})
		}
		w.goIdle(ReasonPutDown)
	case StateZooming:
		w.enter(StateIdle, ReasonPutDown)
	}
	return w.putDownAfter(remaining)
}

func (w *Weapon) standardPutDown() bool {
	return w.putDownAfter(w.tasks.Remaining(schedule.RoleRefire))
}

// putDownAfter 剩余射击间隔按比例折算，不超过收枪动画时间则立即收起
func (w *Weapon) putDownAfter(refireRemaining float64) bool {
	timeTill := refireRemaining * w.cfg.RefirePutDownPercent
	if timeTill <= w.cfg.PutDownTime {
		w.earliestFire = w.now() + timeTill
		w.unequip()
		return true
	}
	w.tasks.Set(schedule.RolePutDown, timeTill-w.cfg.PutDownTime, func() {
		w.earliestFire = w.now() + w.cfg.PutDownTime
		w.unequip()
	})
	return false
}

func (w *Weapon) unequip() {
	w.tasks.ClearAll()
	for i := range w.slots {
		w.slots[i].Active = false
		w.pending[i] = false
	}
	w.firing = NoMode
	w.retryMode = NoMode
	if w.charge != nil {
		w.charge.reset()
	}
	if w.beam != nil {
		w.beam.reset()
	}
	w.equipped = false
	w.switching = false
	w.enter(StateInactive, ReasonPutDown)
	w.log.Debug().Float64("earliest_fire", w.earliestFire).Msg("武器已收起")
	w.emit(Event{Kind: EventPutDown})
}
