// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package flaggen

// rule coerces a record away from a combination rejected by a compiler.
type rule struct {
	when func(*Record) bool
	then func(*Record)
}

type pred func(*Record) bool

func on(name string) pred {
	return func(rec *Record) bool { return rec.On(name) }
}

func off(name string) pred {
	return func(rec *Record) bool { return rec.Toggle(name) == ToggleOff }
}

func not(p pred) pred {
	return func(rec *Record) bool { return !p(rec) }
}

func allOf(preds ...pred) pred {
	return func(rec *Record) bool {
		for _, p := range preds {
			if !p(rec) {
				return false
			}
		}
		return true
	}
}

func anyOf(preds ...pred) pred {
	return func(rec *Record) bool {
		for _, p := range preds {
			if p(rec) {
				return true
			}
		}
		return false
	}
}

func always(*Record) bool { return true }

func hide(names ...string) func(*Record) {
	return func(rec *Record) {
		for _, name := range names {
			rec.Hide(name)
		}
	}
}

func setToggle(name string, v Toggle) func(*Record) {
	return func(rec *Record) { rec.SetToggle(name, v) }
}
