package provision

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnreachableClassifiesTimeouts(t *testing.T) {
	err := Unreachable("ldap", fmt.Errorf("lookup: %w", context.DeadlineExceeded))

	var unreachable *TargetUnreachableError
	assert.True(t, errors.As(err, &unreachable))
	assert.Equal(t, "ldap", unreachable.TargetID)
	assert.True(t, IsFatal(err))
}

func TestUnreachablePassesThrough(t *testing.T) {
	assert.NoError(t, Unreachable("ldap", nil))
	assert.True(t, IsNotFound(Unreachable("ldap", ErrNotFound)))

	plain := errors.New("boom")
	assert.Same(t, plain, Unreachable("ldap", plain))
	assert.False(t, IsFatal(plain))
}

func TestCycleErrorIsConfigurationError(t *testing.T) {
	err := fmt.Errorf("load: %w", &CycleError{TargetID: "ldap", DefinitionIDs: []string{"a", "b", "a"}})

	assert.True(t, errors.Is(err, &ConfigurationError{}))
	assert.Contains(t, err.Error(), "a -> b -> a")
}

func TestSyncOutcomeErr(t *testing.T) {
	o := SyncOutcome{Errors: []error{errors.New("one"), errors.New("two")}}
	assert.EqualError(t, o.Err(), "one\ntwo")
	assert.NoError(t, SyncOutcome{}.Err())
}

func TestParseAttributeMode(t *testing.T) {
	for in, want := range map[string]AttributeMode{
		"":           ModeReplace,
		"replace":    ModeReplace,
		"add_only":   ModeAddOnly,
		"addOnly":    ModeAddOnly,
		"retain_all": ModeRetainAll,
		"retainAll":  ModeRetainAll,
	} {
		got, err := ParseAttributeMode(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseAttributeMode("merge")
	assert.Error(t, err)
}
