// Package workflow 缺陷状态流转策略
//
// 非管理员的可用流转由下方的枚举表决定，表中不存在的 (角色, 当前状态) 组合没有任何可用流转。
// admin 可在任意两个状态之间流转。
package workflow

import (
	"time"

	"github.com/Tuns2000/Campusfix-sub000/internal/model"
)

type transitions map[model.DefectStatus][]model.DefectStatus

var table = map[string]transitions{
	model.RoleManager: {
		model.StatusNew:        {model.StatusConfirmed, model.StatusRejected},
		model.StatusConfirmed:  {model.StatusInProgress, model.StatusRejected},
		model.StatusInProgress: {model.StatusFixed},
		model.StatusFixed:      {model.StatusVerified, model.StatusInProgress},
		model.StatusVerified:   {model.StatusClosed, model.StatusInProgress},
		model.StatusClosed:     {model.StatusInProgress},
		model.StatusRejected:   {model.StatusNew},
	},
	model.RoleEngineer: {
		model.StatusConfirmed:  {model.StatusInProgress},
		model.StatusInProgress: {model.StatusFixed},
	},
	model.RoleObserver: {
		model.StatusFixed:    {model.StatusVerified, model.StatusInProgress},
		model.StatusVerified: {model.StatusClosed},
	},
}

// CanTransition 判断角色能否把缺陷从 from 改为 to
// from == to 不视为流转，调用方应在此之前跳过
func CanTransition(role string, from, to model.DefectStatus) bool {
	if role == model.RoleAdmin {
		return true
	}
	for _, s := range table[role][from] {
		if s == to {
			return true
		}
	}
	return false
}

// AllowedTransitions 角色在当前状态下可选的目标状态
func AllowedTransitions(role string, from model.DefectStatus) []model.DefectStatus {
	if role == model.RoleAdmin {
		out := make([]model.DefectStatus, 0, len(model.DefectStatuses)-1)
		for _, s := range model.DefectStatuses {
			if s != from {
				out = append(out, s)
			}
		}
		return out
	}
	allowed := table[role][from]
	out := make([]model.DefectStatus, len(allowed))
	copy(out, allowed)
	return out
}

// ApplyClosure 计算流转后的 closed_at
// 进入"закрыт"记录当前时间，离开"закрыт"清空，其余情况保持不变
func ApplyClosure(from, to model.DefectStatus, now time.Time, closedAt *time.Time) *time.Time {
	switch {
	case to == model.StatusClosed && from != model.StatusClosed:
		t := now
		return &t
	case from == model.StatusClosed && to != model.StatusClosed:
		return nil
	default:
		return closedAt
	}
}
