// Package bt 行为树。黑板类型由调用方决定，节点每帧从根开始重新求值。
package bt

type Status int

const (
	StatusSuccess Status = iota
	StatusFailure
	StatusRunning
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	case StatusRunning:
		return "running"
	}
	return "unknown"
}

type Node[B any] interface {
	Tick(bb B) Status
}

// Selector 选择节点：遇到 Success 或 Running 停止，全 Failure 才 Failure
type Selector[B any] struct {
	Children []Node[B]
}

func (s *Selector[B]) Tick(bb B) Status {
	for _, child := range s.Children {
		if status := child.Tick(bb); status != StatusFailure {
			return status
		}
	}
	return StatusFailure
}

// Sequence 顺序节点：遇到 Failure 或 Running 停止，全 Success 才 Success
type Sequence[B any] struct {
	Children []Node[B]
}

func (s *Sequence[B]) Tick(bb B) Status {
	for _, child := range s.Children {
		if status := child.Tick(bb); status != StatusSuccess {
			return status
		}
	}
	return StatusSuccess
}

type Condition[B any] struct {
	Check func(bb B) bool
}

func (c *Condition[B]) Tick(bb B) Status {
	if c.Check == nil {
		return StatusFailure
	}
	if c.Check(bb) {
		return StatusSuccess
	}
	return StatusFailure
}

type Action[B any] struct {
	Do func(bb B) Status
}

func (a *Action[B]) Tick(bb B) Status {
	if a.Do == nil {
		return StatusFailure
	}
	return a.Do(bb)
}

// Inverter 交换 Success 与 Failure，Running 原样返回
type Inverter[B any] struct {
	Child Node[B]
}

func (i *Inverter[B]) Tick(bb B) Status {
	switch i.Child.Tick(bb) {
	case StatusSuccess:
		return StatusFailure
	case StatusFailure:
		return StatusSuccess
	}
	return StatusRunning
}

// 构造辅助，省去类型参数重复书写

func Select[B any](children ...Node[B]) *Selector[B] {
	return &Selector[B]{Children: children}
}

func Seq[B any](children ...Node[B]) *Sequence[B] {
	return &Sequence[B]{Children: children}
}

func If[B any](check func(B) bool) *Condition[B] {
	return &Condition[B]{Check: check}
}

func Do[B any](fn func(B) Status) *Action[B] {
	return &Action[B]{Do: fn}
}

func Not[B any](child Node[B]) *Inverter[B] {
	return &Inverter[B]{Child: child}
}
