//go:build !govips || !cgo

package pipeline

func Startup() error {
	return nil
}

func Shutdown() {}

func Backend() string {
	return "imaging"
}

func newCodec() codec {
	return stdCodec{}
}
