package reflectutils

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

type (
	settingsFixture struct {
		Hook    *policyFixture
		Inject  *policyFixture
		Name    string
		private *policyFixture
	}
	policyFixture struct {
		Policy string
	}
)

func (p *policyFixture) ApplyDefault() {
	if p.Policy == "" {
		p.Policy = "ignore"
	}
}

func TestWalkStruct(t *testing.T) {
	t.Run("it should allocate nil structs and visit nested exported fields", func(t *testing.T) {
		// GIVEN
		settings := &settingsFixture{}
		var names []string
		record := func(f Field) { names = append(names, f.Name()) }

		// WHEN
		WalkStruct(settings, AllocNilStruct, record)

		// THEN
		assert.NotNil(t, settings.Hook)
		assert.NotNil(t, settings.Inject)
		assert.Nil(t, settings.private)
		assert.Equal(t, []string{"", "Hook", "Hook.Policy", "Inject", "Inject.Policy", "Name"}, names)
	})

	t.Run("it should let a visitor apply defaults", func(t *testing.T) {
		// GIVEN
		settings := &settingsFixture{Hook: &policyFixture{Policy: "throw"}}
		applyDefault := func(f Field) {
			if f.Value.Kind() != reflect.Pointer || f.Value.IsNil() {
				return
			}
			if d, ok := f.Value.Interface().(interface{ ApplyDefault() }); ok {
				d.ApplyDefault()
			}
		}

		// WHEN
		WalkStruct(settings, AllocNilStruct, applyDefault)

		// THEN
		assert.Equal(t, "throw", settings.Hook.Policy)
		assert.Equal(t, "ignore", settings.Inject.Policy)
	})
}

func TestFields(t *testing.T) {
	t.Run("it should stop when the loop breaks", func(t *testing.T) {
		// GIVEN
		settings := &settingsFixture{Hook: &policyFixture{}}
		var seen []string

		// WHEN
		for f := range Fields(settings) {
			if f.Name() == "Hook.Policy" {
				break
			}
			seen = append(seen, f.Name())
		}

		// THEN
		assert.Equal(t, []string{"", "Hook"}, seen)
	})

	t.Run("it should not walk through nil pointers", func(t *testing.T) {
		// GIVEN
		settings := &settingsFixture{}
		var seen []string

		// WHEN
		for f := range Fields(settings) {
			seen = append(seen, f.Name())
		}

		// THEN
		assert.Equal(t, []string{"", "Hook", "Inject", "Name"}, seen)
	})

	t.Run("it should yield nothing for nil", func(t *testing.T) {
		count := 0
		for range Fields(nil) {
			count++
		}
		assert.Zero(t, count)
	})
}

func TestDeref(t *testing.T) {
	t.Run("it should follow pointers and interfaces", func(t *testing.T) {
		// GIVEN
		value := 42
		ptr := &value
		var boxed any = &ptr

		// WHEN
		got := Deref(reflect.ValueOf(&boxed))

		// THEN
		assert.Equal(t, reflect.Int, got.Kind())
		assert.Equal(t, int64(42), got.Int())
	})
}

func TestHasPointers(t *testing.T) {
	type flat struct {
		A int64
		B [4]uint8
		C float64
	}
	type withPointer struct {
		A int
		S string
	}

	t.Run("it should detect pointer free types", func(t *testing.T) {
		assert.False(t, HasPointers(reflect.TypeOf(flat{})))
		assert.False(t, HasPointers(reflect.TypeOf(int32(0))))
		assert.False(t, HasPointers(reflect.TypeOf([0]*int{})))
	})

	t.Run("it should detect types holding pointers", func(t *testing.T) {
		assert.True(t, HasPointers(reflect.TypeOf(withPointer{})))
		assert.True(t, HasPointers(reflect.TypeOf([]int{})))
		assert.True(t, HasPointers(reflect.TypeOf(map[string]int{})))
	})
}

func sampleTarget() {}

func TestFuncName(t *testing.T) {
	t.Run("it should return the package qualified name", func(t *testing.T) {
		// WHEN
		name := FuncName(reflect.ValueOf(sampleTarget))

		// THEN
		assert.Equal(t, "reflectutils.sampleTarget", name)
	})

	t.Run("it should return empty for non functions", func(t *testing.T) {
		assert.Equal(t, "", FuncName(reflect.ValueOf(42)))
	})
}
