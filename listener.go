// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sbmp

// Listener is invoked for every datagram whose session matches the
// session it was registered under.
type Listener func(dg Datagram)

// listenerSlot is either empty (callback == nil) or holds a (session,
// callback) pair.
type listenerSlot struct {
	session  uint16
	callback Listener
}

// listenerTable is an ordered, fixed-capacity array of slots. Scan order on
// dispatch is insertion order; on duplicate session subscriptions only the
// earliest slot wins. Grounded on sbmp_ep_add_listener/sbmp_ep_remove_listener
// in original_source/library/sbmp_session.c.
type listenerTable struct {
	slots []listenerSlot
}

func newListenerTable(capacity int) listenerTable {
	return listenerTable{slots: make([]listenerSlot, capacity)}
}

// add places the new entry in the first empty slot. Reports
// ErrListenerTableFull if every slot already holds a callback.
func (t *listenerTable) add(session uint16, cb Listener) error {
	for i := range t.slots {
		if t.slots[i].callback != nil {
			continue
		}
		t.slots[i] = listenerSlot{session: session, callback: cb}
		return nil
	}
	return ErrListenerTableFull
}

// remove marks the first slot whose session matches as empty. It is a
// no-op if no slot matches.
func (t *listenerTable) remove(session uint16) {
	for i := range t.slots {
		if t.slots[i].callback == nil {
			continue
		}
		if t.slots[i].session == session {
			t.slots[i] = listenerSlot{}
			return
		}
	}
}

// dispatch scans in insertion order for a slot matching dg.Session and
// invokes its callback. It reports whether a listener consumed the
// datagram.
func (t *listenerTable) dispatch(dg Datagram) bool {
	for i := range t.slots {
		if t.slots[i].callback == nil {
			continue
		}
		if t.slots[i].session == dg.Session {
			t.slots[i].callback(dg)
			return true
		}
	}
	return false
}
