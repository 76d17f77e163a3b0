package testutil

import "fmt"

// ID returns a valid, predictable UUID ending in n:
// ID(1) is 00000000-0000-4000-8000-000000000001.
//
// Golden files stay stable because test ids never come from crypto/rand.
func ID(n int) string {
	return fmt.Sprintf("00000000-0000-4000-8000-%012d", n)
}
