// Package mocks provides mock implementations for testing the portal.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our port interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	store := mocks.NewMockTokenStore(ctrl)
//	store.EXPECT().Load(gomock.Any()).Return("", false, nil)
package mocks

// Generate mock for TokenStore interface from internal/ports package.
// This creates MockTokenStore with methods for all TokenStore interface methods:
// Load, Save, Delete
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=token_store_mock.go github.com/target/mmk-portal/internal/ports TokenStore

// Generate mock for Backend interface from internal/ports package.
// This creates MockBackend with methods for all Backend interface methods:
// Login, Register
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=backend_mock.go github.com/target/mmk-portal/internal/ports Backend
