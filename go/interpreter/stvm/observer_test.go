// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package stvm

import (
	"bytes"
	"strings"
	"testing"

	"go.uber.org/mock/gomock"
)

func TestRun_ObserverSeesEveryStep(t *testing.T) {
	ctrl := gomock.NewController(t)
	observer := NewMockObserver(ctrl)

	vm := newTestVm([]byte{byte(PUSH1), 0x01, byte(POP), byte(STOP)})
	observer.EXPECT().BeforeStep(vm).Times(3)

	res := vm.Run(observer)
	if !res.Success {
		t.Errorf("unexpected result: %v", res)
	}
}

func TestRun_NilObserverIsAllowed(t *testing.T) {
	vm := newTestVm([]byte{byte(STOP)})
	if res := vm.Run(nil); !res.Success {
		t.Errorf("unexpected result: %v", res)
	}
}

func TestLoggingObserver_WritesOneLinePerOperation(t *testing.T) {
	out := bytes.Buffer{}
	vm := newTestVm([]byte{byte(PUSH1), 0x2a, byte(POP), byte(STOP)})

	vm.Run(NewLoggingObserver(&out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("unexpected number of log lines, want 3, got %d:\n%s", len(lines), out.String())
	}
	if !strings.Contains(lines[0], "PUSH1") {
		t.Errorf("first line should name the PUSH1 operation: %q", lines[0])
	}
	if !strings.Contains(lines[1], "POP") || !strings.Contains(lines[1], "0x2a") {
		t.Errorf("second line should name POP and the stack top: %q", lines[1])
	}
	if !strings.Contains(lines[2], "STOP") {
		t.Errorf("third line should name the STOP operation: %q", lines[2])
	}
}
