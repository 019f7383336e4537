package credstore

import (
	"context"
	"errors"
)

// OnDemand is a Store that opens its backend for every operation and closes
// it again before returning. Use it when the backend takes an exclusive
// lock, as Badger does on its directory, and several processes share it.
type OnDemand struct {
	open func() (Store, error)
}

// NewOnDemand returns a Store that calls open for each Get, Set and Delete.
func NewOnDemand(open func() (Store, error)) *OnDemand {
	return &OnDemand{open: open}
}

func (o *OnDemand) Get(ctx context.Context, name string) (value string, err error) {
	err = o.with(func(s Store) error {
		value, err = s.Get(ctx, name)
		return err
	})
	return value, err
}

func (o *OnDemand) Set(ctx context.Context, name, value string) error {
	return o.with(func(s Store) error {
		return s.Set(ctx, name, value)
	})
}

func (o *OnDemand) Delete(ctx context.Context, name string) error {
	return o.with(func(s Store) error {
		return s.Delete(ctx, name)
	})
}

// Close does nothing; the backend is never left open.
func (o *OnDemand) Close() error { return nil }

func (o *OnDemand) with(fn func(Store) error) error {
	s, err := o.open()
	if err != nil {
		return err
	}
	return errors.Join(fn(s), s.Close())
}
