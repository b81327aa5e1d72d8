package schedule

// Role 定时任务角色。每把武器每个角色同时最多只有一个待执行任务。
type Role uint8

const (
	RoleRetry   Role = iota // 冷却中按下开火后的重试
	RoleLoad                // 蓄力装填单发
	RoleGrace               // 装满后的宽限期，到期强制发射
	RoleBurst               // 连发间隔
	RoleRefire              // 射击间隔后的持续开火检查
	RolePutDown             // 切枪等待
	roleCount
)

var roleNames = [roleCount]string{"retry", "load", "grace", "burst", "refire", "putdown"}

func (r Role) String() string {
	if r < roleCount {
		return roleNames[r]
	}
	return "unknown"
}

type task struct {
	armed bool
	due   float64
	set   float64
	gen   uint64
	fn    func()
}

// Table 单把武器的定时任务表，按角色索引。
// 所有回调都在 Advance 中同步执行，没有后台 goroutine。
type Table struct {
	clock Clock
	tasks [roleCount]task
	gen   uint64
}

// NewTable 创建任务表
func NewTable(clock Clock) *Table {
	return &Table{clock: clock}
}

// Set 在 delay 秒后执行 fn，覆盖同角色的旧任务。
// delay <= 0 的任务在下一次 Advance 时执行，而不是当前这一次。
func (t *Table) Set(role Role, delay float64, fn func()) {
	if role >= roleCount || fn == nil {
		return
	}
	if delay < 0 {
		delay = 0
	}
	now := t.clock.Now()
	t.tasks[role] = task{
		armed: true,
		due:   now + delay,
		set:   now,
		gen:   t.gen,
		fn:    fn,
	}
}

// Clear 取消指定角色的任务，重复调用无副作用
func (t *Table) Clear(role Role) {
	if role >= roleCount {
		return
	}
	t.tasks[role] = task{}
}

// ClearAll 取消全部任务
func (t *Table) ClearAll() {
	for i := range t.tasks {
		t.tasks[i] = task{}
	}
}

// Keep 只保留列出的角色，其余全部取消
func (t *Table) Keep(roles ...Role) {
	var keep [roleCount]bool
	for _, r := range roles {
		if r < roleCount {
			keep[r] = true
		}
	}
	for i := range t.tasks {
		if !keep[i] {
			t.tasks[i] = task{}
		}
	}
}

// Active 指定角色是否有待执行任务
func (t *Table) Active(role Role) bool {
	return role < roleCount && t.tasks[role].armed
}

// Remaining 距离任务执行还剩多少秒，没有任务时返回 0
func (t *Table) Remaining(role Role) float64 {
	if !t.Active(role) {
		return 0
	}
	rem := t.tasks[role].due - t.clock.Now()
	if rem < 0 {
		return 0
	}
	return rem
}

// Rate 任务设置时的总延迟
func (t *Table) Rate(role Role) float64 {
	if !t.Active(role) {
		return 0
	}
	return t.tasks[role].due - t.tasks[role].set
}

// Advance 按到期时间先后执行所有已到期任务。
// 回调中新设置的任务留到下一次 Advance。
func (t *Table) Advance() {
	t.gen++
	current := t.gen
	for {
		now := t.clock.Now()
		next := -1
		for i := range t.tasks {
			tk := &t.tasks[i]
			if !tk.armed || tk.gen >= current || tk.due > now {
				continue
			}
			if next < 0 || tk.due < t.tasks[next].due {
				next = i
			}
		}
		if next < 0 {
			return
		}
		fn := t.tasks[next].fn
		t.tasks[next] = task{}
		fn()
	}
}
