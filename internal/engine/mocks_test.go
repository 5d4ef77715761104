package engine

import (
	"context"

	"github.com/eleven-am/perimeter/internal/domain"
)

type mockGroupResolver struct {
	groups map[domain.SecurityGroupID]*domain.SecurityGroupData
	err    error
}

func newMockGroupResolver() *mockGroupResolver {
	return &mockGroupResolver{
		groups: make(map[domain.SecurityGroupID]*domain.SecurityGroupData),
	}
}

func (m *mockGroupResolver) addGroup(id, region, name string, rules ...domain.SecurityGroupRule) {
	m.groups[domain.SecurityGroupID{ID: id, Region: region}] = &domain.SecurityGroupData{
		ID:           id,
		Name:         name,
		Region:       region,
		InboundRules: rules,
	}
}

func (m *mockGroupResolver) ResolveSecurityGroup(ctx context.Context, id domain.SecurityGroupID) (*domain.SecurityGroupData, error) {
	if m.err != nil {
		return nil, m.err
	}
	if group, ok := m.groups[id]; ok {
		return group, nil
	}
	return nil, &domain.NotFoundError{Kind: "security group", ID: id.ID}
}
