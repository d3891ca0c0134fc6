// Copyright (C) The SynSigRun Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package main

import (
	synsigrun "github.com/czeslaw-milosz/SynSigRun"
)

func main() {
	synsigrun.Main()
}
