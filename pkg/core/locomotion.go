package core

import (
	"math"

	"arenanet/pkg/geom"
)

// Input 表示一帧内角色的移动输入
type Input struct {
	Forward bool
	Back    bool
	Left    bool
	Right   bool
	Slide   bool
	Yaw     float64 // 度
	Pitch   float64
}

// ApplyInput 将输入转换为实体速度与朝向，位移在 World.Update 中发生
func ApplyInput(world *World, id EntityID, input Input) bool {
	if world == nil {
		return false
	}
	e := world.Entity(id)
	if e == nil || e.Dead {
		return false
	}

	e.Rotation = geom.Rotator{Pitch: clampPitch(input.Pitch), Yaw: input.Yaw}

	fwd, side := 0.0, 0.0
	if input.Forward {
		fwd++
	}
	if input.Back {
		fwd--
	}
	if input.Right {
		side++
	}
	if input.Left {
		side--
	}

	// 斜向移动时归一化，避免速度变快
	if fwd != 0 && side != 0 {
		fwd *= 0.70710678
		side *= 0.70710678
	}

	yaw := input.Yaw * math.Pi / 180
	forward := geom.V(math.Cos(yaw), math.Sin(yaw), 0)
	right := geom.V(-math.Sin(yaw), math.Cos(yaw), 0)

	speed := DefaultMoveSpeed
	e.Sliding = input.Slide && (fwd != 0 || side != 0)
	if e.Sliding {
		speed *= SlideSpeedFactor
	}
	e.Velocity = forward.Scale(fwd * speed).Add(right.Scale(side * speed))
	return true
}

func clampPitch(p float64) float64 {
	return geom.Clamp(p, -89, 89)
}
