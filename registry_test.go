// registry_test.go
package bulkhooks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chmenegatti/bulkhooks/metadata"
)

type regAccount struct {
	ID      int64
	Balance float64
	Status  string
}

type regOrder struct {
	ID int64
}

func noopHook(context.Context, *Batch) error { return nil }

func testRegistration(handler, method string) Registration {
	return Registration{Handler: handler, Method: method, Func: noopHook}
}

func TestRegisterAndLookup(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, reg.Register(regAccount{}, BeforeUpdate, testRegistration("AccountHooks", "OnBeforeUpdate")))

	regs := reg.Lookup(regAccount{}, BeforeUpdate)
	require.Len(t, regs, 1)
	assert.Equal(t, "AccountHooks", regs[0].Handler)
	assert.Equal(t, DefaultPriority, regs[0].Priority, "zero priority takes the default")

	// Unknown keys yield empty, never an error.
	assert.Empty(t, reg.Lookup(regAccount{}, AfterDelete))
	assert.Empty(t, reg.Lookup(regOrder{}, BeforeUpdate))
}

func TestRegisterPointerAndValueShareKey(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, reg.Register(&regAccount{}, BeforeCreate, testRegistration("H", "M")))
	assert.Len(t, reg.Lookup(regAccount{}, BeforeCreate), 1)
	assert.Len(t, reg.Lookup(&regAccount{}, BeforeCreate), 1)
}

func TestRegisterIdempotent(t *testing.T) {
	reg := NewRegistry()

	r := testRegistration("AccountHooks", "OnCreate")
	require.NoError(t, reg.Register(regAccount{}, BeforeCreate, r))
	require.NoError(t, reg.Register(regAccount{}, BeforeCreate, r))

	assert.Len(t, reg.Lookup(regAccount{}, BeforeCreate), 1, "duplicate key must be absorbed")

	// A different method under the same handler is a distinct key.
	require.NoError(t, reg.Register(regAccount{}, BeforeCreate, testRegistration("AccountHooks", "OnCreateAgain")))
	assert.Len(t, reg.Lookup(regAccount{}, BeforeCreate), 2)
}

func TestRegisterValidation(t *testing.T) {
	reg := NewRegistry()

	err := reg.Register(regAccount{}, BeforeCreate, Registration{Handler: "H", Method: "M"})
	assert.ErrorIs(t, err, ErrNilHookFunc)

	err = reg.Register(regAccount{}, BeforeCreate, Registration{Func: noopHook})
	assert.ErrorIs(t, err, ErrMissingIdentity)

	err = reg.Register(regAccount{}, Event("before_upsert"), testRegistration("H", "M"))
	assert.ErrorIs(t, err, ErrUnknownEvent)

	err = reg.Register(nil, BeforeCreate, testRegistration("H", "M"))
	assert.Error(t, err)

	err = reg.Register(42, BeforeCreate, testRegistration("H", "M"))
	assert.Error(t, err)
}

func TestClear(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(regAccount{}, BeforeCreate, testRegistration("H", "M")))

	reg.Clear()
	assert.Empty(t, reg.Lookup(regAccount{}, BeforeCreate))

	// After Clear the same identity can register again.
	require.NoError(t, reg.Register(regAccount{}, BeforeCreate, testRegistration("H", "M")))
	assert.Len(t, reg.Lookup(regAccount{}, BeforeCreate), 1)
}

func TestListAll(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(regAccount{}, BeforeCreate, testRegistration("H", "A")))
	require.NoError(t, reg.Register(regAccount{}, AfterCreate, testRegistration("H", "B")))
	require.NoError(t, reg.Register(regOrder{}, BeforeDelete, testRegistration("H", "C")))

	accountName := "github.com/chmenegatti/bulkhooks.regAccount"
	orderName := "github.com/chmenegatti/bulkhooks.regOrder"

	all := reg.ListAll()
	require.Contains(t, all, accountName)
	require.Contains(t, all, orderName)
	assert.Len(t, all[accountName][BeforeCreate], 1)
	assert.Len(t, all[accountName][AfterCreate], 1)
	assert.Len(t, all[orderName][BeforeDelete], 1)
}

func TestListAllQualifiesSameNamedTypes(t *testing.T) {
	// Same struct name as metadata.EntityMetadata, different package.
	type EntityMetadata struct{ ID int64 }

	reg := NewRegistry()
	require.NoError(t, reg.Register(EntityMetadata{}, BeforeCreate, testRegistration("H", "Local")))
	require.NoError(t, reg.Register(metadata.EntityMetadata{}, BeforeCreate, testRegistration("H", "Foreign")))

	all := reg.ListAll()
	assert.Len(t, all, 2, "same-named structs from different packages must not merge")
}

func TestScopeRestoresSnapshot(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(regAccount{}, BeforeCreate, testRegistration("H", "Base")))

	restore := reg.Scope()
	require.NoError(t, reg.Register(regAccount{}, BeforeCreate, testRegistration("H", "Scoped")))
	require.NoError(t, reg.Register(regOrder{}, AfterDelete, testRegistration("H", "Scoped")))
	assert.Len(t, reg.Lookup(regAccount{}, BeforeCreate), 2)

	restore()

	assert.Len(t, reg.Lookup(regAccount{}, BeforeCreate), 1)
	assert.Empty(t, reg.Lookup(regOrder{}, AfterDelete))

	// The snapshot is a restore, not a merge: scoped identities are
	// registrable again afterwards.
	require.NoError(t, reg.Register(regAccount{}, BeforeCreate, testRegistration("H", "Scoped")))
	assert.Len(t, reg.Lookup(regAccount{}, BeforeCreate), 2)
}

func TestTempRegister(t *testing.T) {
	reg := NewRegistry()

	restore, err := reg.TempRegister(regAccount{}, BeforeUpdate, testRegistration("H", "Temp"))
	require.NoError(t, err)
	assert.Len(t, reg.Lookup(regAccount{}, BeforeUpdate), 1)

	restore()
	assert.Empty(t, reg.Lookup(regAccount{}, BeforeUpdate))

	// A malformed temporary registration leaves the registry untouched.
	_, err = reg.TempRegister(regAccount{}, BeforeUpdate, Registration{Handler: "H", Method: "Temp"})
	assert.ErrorIs(t, err, ErrNilHookFunc)
	assert.Empty(t, reg.Lookup(regAccount{}, BeforeUpdate))
}

func TestDefaultRegistryDelegates(t *testing.T) {
	restore := DefaultRegistry().Scope()
	t.Cleanup(restore)

	require.NoError(t, Register(regAccount{}, BeforeCreate, testRegistration("Global", "M")))
	assert.Len(t, Lookup(regAccount{}, BeforeCreate), 1)
	assert.Contains(t, ListAll(), "github.com/chmenegatti/bulkhooks.regAccount")
}

func TestLookupReturnsCopy(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(regAccount{}, BeforeCreate, testRegistration("H", "A")))
	require.NoError(t, reg.Register(regAccount{}, BeforeCreate, testRegistration("H", "B")))

	regs := reg.Lookup(regAccount{}, BeforeCreate)
	regs[0], regs[1] = regs[1], regs[0]

	fresh := reg.Lookup(regAccount{}, BeforeCreate)
	assert.Equal(t, "A", fresh[0].Method, "callers reordering the result must not affect the registry")
}
