package aws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// AccountContext hands out an Inventory per account, assuming a role
// in accounts other than the base one. Credentials and inventories are
// cached until close to expiry.
type AccountContext struct {
	baseConfig     aws.Config
	roleARNPattern string
	opts           Options
	stsClient      *sts.Client
	credentials    map[string]aws.Credentials
	inventories    map[string]*Inventory
	mu             sync.RWMutex
}

// NewAccountContext creates an account context for cross-account
// inventory access. The roleARNPattern should contain %s as a
// placeholder for the account ID.
func NewAccountContext(cfg aws.Config, roleARNPattern string, opts Options) *AccountContext {
	if roleARNPattern == "" {
		roleARNPattern = "arn:aws:iam::%s:role/PerimeterAuditRole"
	}
	return &AccountContext{
		baseConfig:     cfg,
		roleARNPattern: roleARNPattern,
		opts:           opts,
		stsClient:      sts.NewFromConfig(cfg),
		credentials:    make(map[string]aws.Credentials),
		inventories:    make(map[string]*Inventory),
	}
}

// AssumeRole obtains temporary credentials for an account, reusing
// cached credentials that are not within five minutes of expiring.
func (a *AccountContext) AssumeRole(ctx context.Context, accountID string) (aws.Credentials, error) {
	a.mu.RLock()
	creds, exists := a.credentials[accountID]
	a.mu.RUnlock()

	if exists && time.Now().Add(5*time.Minute).Before(creds.Expires) {
		return creds, nil
	}

	roleARN := fmt.Sprintf(a.roleARNPattern, accountID)
	out, err := a.stsClient.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(roleARN),
		RoleSessionName: aws.String(fmt.Sprintf("perimeter-audit-%s", accountID)),
		DurationSeconds: aws.Int32(3600),
	})
	if err != nil {
		return aws.Credentials{}, fmt.Errorf("assume role %s: %w", roleARN, err)
	}

	creds = aws.Credentials{
		AccessKeyID:     derefString(out.Credentials.AccessKeyId),
		SecretAccessKey: derefString(out.Credentials.SecretAccessKey),
		SessionToken:    derefString(out.Credentials.SessionToken),
		CanExpire:       true,
		Expires:         *out.Credentials.Expiration,
	}

	a.mu.Lock()
	a.credentials[accountID] = creds
	a.mu.Unlock()

	return creds, nil
}

// GetInventory returns the inventory source for an account. The empty
// account ID means the base credentials' own account.
func (a *AccountContext) GetInventory(ctx context.Context, accountID string) (*Inventory, error) {
	if accountID == "" {
		return NewInventory(a.baseConfig, a.opts), nil
	}

	a.mu.RLock()
	inv, exists := a.inventories[accountID]
	creds, hasCreds := a.credentials[accountID]
	a.mu.RUnlock()

	if exists && hasCreds && time.Now().Add(5*time.Minute).Before(creds.Expires) {
		return inv, nil
	}

	creds, err := a.AssumeRole(ctx, accountID)
	if err != nil {
		return nil, err
	}

	cfg := a.baseConfig.Copy()
	cfg.Credentials = credentials.NewStaticCredentialsProvider(
		creds.AccessKeyID,
		creds.SecretAccessKey,
		creds.SessionToken,
	)
	inv = NewInventory(cfg, a.opts)

	a.mu.Lock()
	a.inventories[accountID] = inv
	a.mu.Unlock()

	return inv, nil
}
