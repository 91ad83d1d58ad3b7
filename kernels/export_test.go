package kernels

import "github.com/bsm/coltable/boundary"

func Panicking() (res boundary.OneBufferResult) {
	defer guardOne("panicking", &res)
	panic("boom")
}
