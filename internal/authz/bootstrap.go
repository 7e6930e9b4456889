package authz

import "fmt"

// RoleSeed 预置角色定义
type RoleSeed struct {
	Role     string
	Inherits []string
	Policies []Policy
}

// BuiltinRoleSeeds 结算运维预置角色矩阵
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: "readonly_auditor",
			Policies: []Policy{
				{Object: "/admin/*", Action: "GET"},
			},
		},
		{
			Role:     "verifier_ops",
			Inherits: []string{"readonly_auditor"},
			Policies: []Policy{
				{Object: "/admin/payments/:id/verify", Action: "POST"},
				{Object: "/admin/observer/tick", Action: "POST"},
			},
		},
		{
			Role:     "treasury",
			Inherits: []string{"verifier_ops"},
			Policies: []Policy{
				{Object: "/admin/sweeps", Action: "POST"},
			},
		},
		{
			Role: "superuser",
			Policies: []Policy{
				{Object: "/admin/*", Action: "*"},
			},
		},
	}
}

// BootstrapBuiltinRoles 初始化预置角色与默认策略
func (s *Service) BootstrapBuiltinRoles() error {
	if s == nil || s.enforcer == nil {
		return fmt.Errorf("authz service unavailable")
	}

	for _, seed := range BuiltinRoleSeeds() {
		role, err := s.EnsureRole(seed.Role)
		if err != nil {
			return err
		}
		for _, parent := range seed.Inherits {
			parentRole, err := s.EnsureRole(parent)
			if err != nil {
				return err
			}
			if _, err := s.enforcer.AddNamedGroupingPolicy("g", role, parentRole); err != nil {
				return fmt.Errorf("link role inheritance failed: %w", err)
			}
		}
		for _, policy := range seed.Policies {
			if err := s.GrantRolePolicy(role, policy.Object, policy.Action); err != nil {
				return fmt.Errorf("add builtin policy failed: %w", err)
			}
		}
	}
	return nil
}

// BootstrapOperatorRoles 按配置覆盖操作人角色
func (s *Service) BootstrapOperatorRoles(assignments map[string][]string) error {
	for operator, roles := range assignments {
		if err := s.SetOperatorRoles(operator, roles); err != nil {
			return fmt.Errorf("bootstrap operator %s failed: %w", operator, err)
		}
	}
	return nil
}
