package shared

import "context"

type companyContextKey struct{}

// ContextWithCompany stores the acting company id in context.
func ContextWithCompany(ctx context.Context, companyID int64) context.Context {
	return context.WithValue(ctx, companyContextKey{}, companyID)
}

// CompanyFromContext extracts the company id from context.
func CompanyFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(companyContextKey{}).(int64)
	return id, ok
}

// RequireCompany returns the company id or ErrCompanyRequired.
func RequireCompany(ctx context.Context) (int64, error) {
	id, ok := CompanyFromContext(ctx)
	if !ok || id == 0 {
		return 0, ErrCompanyRequired
	}
	return id, nil
}
