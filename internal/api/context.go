package api

import (
	"context"

	"github.com/rma-advocacia/client-portal/internal/models"
)

type contextKey string

const clientContextKey contextKey = "portal_client"

// ClientFromContext extracts the authenticated Client from context
func ClientFromContext(ctx context.Context) *models.Client {
	client, ok := ctx.Value(clientContextKey).(*models.Client)
	if !ok {
		return nil
	}
	return client
}

// ContextWithClient adds Client to context
func ContextWithClient(ctx context.Context, client *models.Client) context.Context {
	return context.WithValue(ctx, clientContextKey, client)
}
