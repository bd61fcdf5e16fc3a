package device

import (
	"context"
	"log"

	"medtime-companion/internal/store"
)

// LoadAddress returns the persisted device address, or fallback when none
// is stored or the store cannot be read.
func LoadAddress(ctx context.Context, kv store.Store, fallback string) string {
	addr, ok, err := kv.Get(ctx, store.KeyDeviceAddress)
	if err != nil {
		log.Printf("device: failed to load address, using %s: %v", fallback, err)
		return NormalizeAddress(fallback)
	}
	if !ok || NormalizeAddress(addr) == "" {
		return NormalizeAddress(fallback)
	}
	return NormalizeAddress(addr)
}

// SaveAddress points link at addr and persists it. The link is updated
// even when persisting fails.
func SaveAddress(ctx context.Context, kv store.Store, link *Link, addr string) error {
	link.SetBaseAddress(addr)
	return kv.Set(ctx, store.KeyDeviceAddress, link.BaseAddress())
}

// ResetAddress forgets the stored address and points link at factory.
func ResetAddress(ctx context.Context, kv store.Store, link *Link, factory string) error {
	link.SetBaseAddress(factory)
	return kv.Delete(ctx, store.KeyDeviceAddress)
}
