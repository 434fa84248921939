package authcore

import (
	"context"
	"fmt"
)

// ResolveTenant loads the tenant row for accountID and materializes the
// connection parameters for the (account, login) pair: decrypted database
// password plus the canonical pool name. The tenant code keys the secret
// decryption, so a row copied across tenants yields garbage, not access.
func (e *Engine) ResolveTenant(ctx context.Context, accountID, loginID int64) (*TenantAccount, *TenantConnection, error) {
	if e == nil || e.store == nil {
		return nil, nil, ErrEngineNotReady
	}
	ctx = ensureRequestID(ctx)

	tenant, conn, err := e.resolveTenant(ctx, accountID, loginID)
	if err != nil {
		return nil, nil, err
	}
	return tenant, &conn, nil
}

func (e *Engine) resolveTenant(ctx context.Context, accountID, loginID int64) (*TenantAccount, TenantConnection, error) {
	tenant, err := e.store.GetTenantAccount(ctx, accountID)
	if err != nil {
		return nil, TenantConnection{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if tenant == nil {
		e.metricInc(MetricTenantMissing)
		e.emitAudit(ctx, auditEventTenantMissing, false, loginID, accountID, "", ErrTenantNotFound, nil)
		return nil, TenantConnection{}, ErrTenantNotFound
	}

	secret, err := e.codec.Decrypt(tenant.EncryptedSecret, tenant.Code)
	if err != nil {
		return nil, TenantConnection{}, fmt.Errorf("decrypting tenant %d secret: %w", accountID, err)
	}

	conn := TenantConnection{
		PoolName: fmt.Sprintf("%s_%d_%d", e.config.Tenant.PoolPrefix, accountID, loginID),
		Server:   tenant.DBServer,
		Database: tenant.DBName,
		User:     tenant.Code,
		Password: secret,
	}

	e.metricInc(MetricTenantResolved)
	e.emitAudit(ctx, auditEventTenantResolved, true, loginID, accountID, "", nil, nil)

	return tenant, conn, nil
}

// ResolveOAuthCallback validates the (account, login) pair an external
// identity provider calls back with. The pair must be linked and the login
// must be fully active; anything else is rejected without detail.
func (e *Engine) ResolveOAuthCallback(ctx context.Context, accountID, loginID int64) (*LoginAccount, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	user, err := e.store.GetLoginByID(ctx, loginID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if user == nil {
		return nil, ErrInvalidOAuthCallback
	}
	if err := statusError(user.Status); err != nil {
		return nil, err
	}
	if user.Status != StatusActive {
		return nil, ErrInactiveUser
	}

	linked, err := e.store.IsLinked(ctx, accountID, loginID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !linked {
		return nil, ErrInvalidOAuthCallback
	}

	return user, nil
}
