package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/eleven-am/perimeter/internal/domain"
	"github.com/eleven-am/perimeter/internal/netset"
)

func classifyForTest(t *testing.T, subnets []domain.SubnetData, dynamic map[string]bool) *SubnetIndex {
	t.Helper()
	index, err := Classify(subnets, dynamic)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	return index
}

func TestDeriver_StaticAndDynamicAggregation(t *testing.T) {
	index := classifyForTest(t, []domain.SubnetData{
		{ID: "subnet-1", Region: "us-east-1", CIDRBlock: "10.0.0.0/24", Name: "web"},
		{ID: "subnet-2", Region: "us-east-1", CIDRBlock: "10.0.1.0/24", Name: "pool-a"},
	}, map[string]bool{"pool-a": true})

	resolver := newMockGroupResolver()
	resolver.addGroup("sg-1", "us-east-1", "g1", domain.SecurityGroupRule{
		Protocol: "tcp", FromPort: 443, ToPort: 443, CIDRBlocks: []string{"0.0.0.0/0"},
	})
	resolver.addGroup("sg-2", "us-east-1", "g2", domain.SecurityGroupRule{
		Protocol: "tcp", FromPort: 22, ToPort: 22, CIDRBlocks: []string{"10.0.0.0/8"},
	})

	hosts := []domain.HostData{
		{ID: "i-1", Name: "web-1", State: "running", PrivateIP: "10.0.0.5", Region: "us-east-1", SecurityGroups: []string{"sg-1"}},
		{ID: "i-2", State: "running", PrivateIP: "10.0.1.10", Region: "us-east-1", SecurityGroups: []string{"sg-2"}},
		{ID: "i-3", State: "running", PrivateIP: "10.0.1.20", Region: "us-east-1", SecurityGroups: []string{"sg-2"}},
	}

	rules, skipped, err := NewDeriver(index, resolver, nil).Derive(context.Background(), hosts, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(skipped) != 0 {
		t.Errorf("expected no skips, got %v", skipped)
	}
	rules = Simplify(rules)
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d: %v", len(rules), rules)
	}

	// Two pool members contribute one shared rule whose destination is
	// the pool's full range, not either member address.
	poolRule := findRule(t, rules, "tcp/22")
	if !poolRule.Dst.Equal(netset.MustParse("10.0.1.0/24")) {
		t.Errorf("expected pool destination 10.0.1.0/24, got %s", netset.Format(poolRule.Dst))
	}
	if poolRule.Name != "subnet=pool-a/sg=g2" {
		t.Errorf("unexpected pool rule name %q", poolRule.Name)
	}

	// The static host keeps exactly its own address as destination.
	hostRule := findRule(t, rules, "tcp/443")
	if !hostRule.Dst.Equal(netset.MustParse("10.0.0.5")) {
		t.Errorf("expected host destination 10.0.0.5, got %s", netset.Format(hostRule.Dst))
	}
	if !hostRule.Src.Equal(netset.MustParse("0.0.0.0/0")) {
		t.Errorf("expected source 0.0.0.0/0, got %s", netset.Format(hostRule.Src))
	}
	if hostRule.Name != "host=web-1/sg=g1" {
		t.Errorf("unexpected host rule name %q", hostRule.Name)
	}
}

func findRule(t *testing.T, rules []domain.Rule, app string) domain.Rule {
	t.Helper()
	for _, rule := range rules {
		if rule.App == app {
			return rule
		}
	}
	t.Fatalf("no rule with app %s", app)
	return domain.Rule{}
}

func TestDeriver_SkipsAnomalousHosts(t *testing.T) {
	index := classifyForTest(t, []domain.SubnetData{
		{ID: "subnet-1", Region: "us-east-1", CIDRBlock: "10.0.0.0/24", Name: "web"},
	}, nil)
	resolver := newMockGroupResolver()
	resolver.addGroup("sg-1", "us-east-1", "g1", domain.SecurityGroupRule{
		Protocol: "tcp", FromPort: 80, ToPort: 80, CIDRBlocks: []string{"0.0.0.0/0"},
	})

	hosts := []domain.HostData{
		{ID: "i-dead", State: "terminated", PrivateIP: "10.0.0.9", Region: "us-east-1", SecurityGroups: []string{"sg-1"}},
		{ID: "i-noip", State: "running", Region: "us-east-1", SecurityGroups: []string{"sg-1"}},
		{ID: "i-orphan", State: "running", PrivateIP: "172.16.0.4", Region: "us-east-1", SecurityGroups: []string{"sg-1"}},
		{ID: "i-ok", State: "running", PrivateIP: "10.0.0.5", Region: "us-east-1", SecurityGroups: []string{"sg-1"}},
	}

	rules, skipped, err := NewDeriver(index, resolver, nil).Derive(context.Background(), hosts, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rules))
	}

	wantReasons := map[string]SkipReason{
		"i-dead":   SkipNotLive,
		"i-noip":   SkipNoPrivateAddress,
		"i-orphan": SkipNoMatchingSubnet,
	}
	if len(skipped) != len(wantReasons) {
		t.Fatalf("expected %d skips, got %d: %v", len(wantReasons), len(skipped), skipped)
	}
	for _, skip := range skipped {
		if wantReasons[skip.Subject] != skip.Reason {
			t.Errorf("host %s: expected reason %s, got %s", skip.Subject, wantReasons[skip.Subject], skip.Reason)
		}
	}
}

func TestDeriver_MissingSecurityGroupIsWarningNotError(t *testing.T) {
	index := classifyForTest(t, []domain.SubnetData{
		{ID: "subnet-1", Region: "us-east-1", CIDRBlock: "10.0.0.0/24", Name: "web"},
	}, nil)
	resolver := newMockGroupResolver()

	hosts := []domain.HostData{
		{ID: "i-1", State: "running", PrivateIP: "10.0.0.5", Region: "us-east-1", SecurityGroups: []string{"sg-gone"}},
	}

	rules, skipped, err := NewDeriver(index, resolver, nil).Derive(context.Background(), hosts, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(rules) != 0 {
		t.Errorf("expected no rules, got %d", len(rules))
	}
	if len(skipped) != 1 || skipped[0].Reason != SkipUnknownSecurityGroup {
		t.Errorf("expected one unknown-security-group skip, got %v", skipped)
	}
}

func TestDeriver_ResolverFailureIsFatal(t *testing.T) {
	index := classifyForTest(t, []domain.SubnetData{
		{ID: "subnet-1", Region: "us-east-1", CIDRBlock: "10.0.0.0/24", Name: "web"},
	}, nil)
	resolver := newMockGroupResolver()
	resolver.err = errors.New("throttled")

	hosts := []domain.HostData{
		{ID: "i-1", State: "running", PrivateIP: "10.0.0.5", Region: "us-east-1", SecurityGroups: []string{"sg-1"}},
	}

	_, _, err := NewDeriver(index, resolver, nil).Derive(context.Background(), hosts, nil)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestDeriver_GroupGrantsSkippedWithWarning(t *testing.T) {
	index := classifyForTest(t, []domain.SubnetData{
		{ID: "subnet-1", Region: "us-east-1", CIDRBlock: "10.0.0.0/24", Name: "web"},
	}, nil)
	resolver := newMockGroupResolver()
	resolver.addGroup("sg-1", "us-east-1", "g1",
		domain.SecurityGroupRule{
			Protocol: "tcp", FromPort: 443, ToPort: 443,
			ReferencedSecurityGroups: []string{"sg-other"},
		},
		domain.SecurityGroupRule{
			Protocol: "tcp", FromPort: 22, ToPort: 22, CIDRBlocks: []string{"10.0.0.0/8"},
		},
	)

	hosts := []domain.HostData{
		{ID: "i-1", State: "running", PrivateIP: "10.0.0.5", Region: "us-east-1", SecurityGroups: []string{"sg-1"}},
	}

	rules, skipped, err := NewDeriver(index, resolver, nil).Derive(context.Background(), hosts, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(rules) != 1 || rules[0].App != "tcp/22" {
		t.Fatalf("expected only the literal grant to survive, got %v", rules)
	}
	if len(skipped) != 1 || skipped[0].Reason != SkipGroupGrant || skipped[0].Detail != "sg-other" {
		t.Errorf("expected one security-group-grant skip, got %v", skipped)
	}
}

func TestDeriver_PoolAggregatesOverSubnetRanges(t *testing.T) {
	index := classifyForTest(t, []domain.SubnetData{
		{ID: "subnet-1", Region: "us-east-1", CIDRBlock: "10.0.0.0/24", Name: "app-a"},
		{ID: "subnet-2", Region: "us-east-1", CIDRBlock: "10.0.1.0/24", Name: "app-b"},
	}, nil)
	resolver := newMockGroupResolver()
	resolver.addGroup("sg-1", "us-east-1", "lb", domain.SecurityGroupRule{
		Protocol: "tcp", FromPort: 443, ToPort: 443, CIDRBlocks: []string{"0.0.0.0/0"},
	})

	pools := []domain.PoolData{
		{Label: "alb=frontend", Region: "us-east-1", SubnetIDs: []string{"subnet-1", "subnet-2", "subnet-missing"}, SecurityGroups: []string{"sg-1"}},
	}

	rules, skipped, err := NewDeriver(index, resolver, nil).Derive(context.Background(), nil, pools)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rules))
	}
	want := netset.MustParse("10.0.0.0/24", "10.0.1.0/24")
	if !rules[0].Dst.Equal(want) {
		t.Errorf("expected destination %s, got %s", netset.Format(want), netset.Format(rules[0].Dst))
	}
	if rules[0].Name != "alb=frontend/sg=lb" {
		t.Errorf("unexpected rule name %q", rules[0].Name)
	}
	if len(skipped) != 1 || skipped[0].Reason != SkipUnknownSubnetID {
		t.Errorf("expected one unknown-subnet-id skip, got %v", skipped)
	}
}

func TestDeriver_HostNameFallsBackToID(t *testing.T) {
	index := classifyForTest(t, []domain.SubnetData{
		{ID: "subnet-1", Region: "us-east-1", CIDRBlock: "10.0.0.0/24", Name: "web"},
	}, nil)
	resolver := newMockGroupResolver()
	resolver.addGroup("sg-1", "us-east-1", "g1", domain.SecurityGroupRule{
		Protocol: "tcp", FromPort: 80, ToPort: 80, CIDRBlocks: []string{"0.0.0.0/0"},
	})

	hosts := []domain.HostData{
		{ID: "i-anon", State: "running", PrivateIP: "10.0.0.7", Region: "us-east-1", SecurityGroups: []string{"sg-1"}},
	}

	rules, _, err := NewDeriver(index, resolver, nil).Derive(context.Background(), hosts, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(rules) != 1 || rules[0].Name != "host=i-anon/sg=g1" {
		t.Errorf("expected name keyed by instance ID, got %v", rules)
	}
}
