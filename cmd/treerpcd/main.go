// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command treerpcd serves an instrument tree over treerpc transports and
// talks to running servers.
package main

func main() {
	Execute()
}
