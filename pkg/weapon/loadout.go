package weapon

// Loadout 一个角色携带的全部武器。切枪时先收起当前武器，收起完成后装备目标武器。
type Loadout struct {
	weapons []*Weapon
	current int
	next    int
	held    [NumModes]bool
}

// NewLoadout 创建并装备第一把武器
func NewLoadout(weapons ...*Weapon) *Loadout {
	l := &Loadout{weapons: weapons, next: -1}
	if len(weapons) > 0 {
		weapons[0].Equip()
	}
	return l
}

// Current 当前武器
func (l *Loadout) Current() *Weapon {
	if len(l.weapons) == 0 {
		return nil
	}
	return l.weapons[l.current]
}

// Weapon 按编号查找
func (l *Loadout) Weapon(id uint8) *Weapon {
	for _, w := range l.weapons {
		if w.ID == id {
			return w
		}
	}
	return nil
}

// Weapons 全部武器
func (l *Loadout) Weapons() []*Weapon {
	return l.weapons
}

// Switching 是否正在切枪
func (l *Loadout) Switching() bool {
	return l.next >= 0
}

// CanSwitch 第 idx 把武器是否可以切换过去
func (l *Loadout) CanSwitch(idx int) bool {
	return idx >= 0 && idx < len(l.weapons) && idx != l.current
}

// Switch 切换到第 idx 把武器
func (l *Loadout) Switch(idx int) bool {
	if !l.CanSwitch(idx) {
		return false
	}
	l.next = idx
	if l.Current().PutDown() {
		l.completeSwitch()
	}
	return true
}

func (l *Loadout) completeSwitch() {
	prev := l.Current()
	l.current = l.next
	l.next = -1
	w := l.Current()
	// 收枪前剩余的射击间隔延续到新武器
	if prev.earliestFire > w.earliestFire {
		w.earliestFire = prev.earliestFire
	}
	for m := Mode(0); m < NumModes; m++ {
		if l.held[m] {
			w.pending[m] = true
		}
	}
	w.Equip()
}

// StartFire 按下开火
func (l *Loadout) StartFire(m Mode) StartResult {
	if !m.Valid() {
		return Ignored
	}
	l.held[m] = true
	if w := l.Current(); w != nil {
		return w.StartFire(m)
	}
	return Ignored
}

// StopFire 松开开火
func (l *Loadout) StopFire(m Mode) {
	if !m.Valid() {
		return
	}
	l.held[m] = false
	if w := l.Current(); w != nil {
		w.StopFire(m)
	}
}

// Step 推进所有武器，收起完成后装备目标武器
func (l *Loadout) Step(dt float64) {
	for _, w := range l.weapons {
		w.Step(dt)
	}
	if l.next >= 0 && !l.Current().Equipped() {
		l.completeSwitch()
	}
}
