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

import "github.com/Fantom-foundation/tracevm/go/tracevm"

// Internal guard errors. These are not part of the public error taxonomy;
// they protect the interpreter against offsets and sizes that do not fit
// the host word size and unwind like any other execution error.
const (
	errOverflow = tracevm.ConstError("offset or size overflows uint64")
)
