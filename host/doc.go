// Package host is the untrusted side of the boundary: a Context holding
// trusted applications and shared regions, Sessions opened against those
// applications, and the Operation a caller fills to invoke a command.
//
// Typical use:
//
//	tc, err := host.InitializeContext(ctx, host.WithTrustedApp(hello.Descriptor()))
//	defer tc.Finalize(ctx)
//	sess, err := tc.OpenSession(ctx, hello.UUID)
//	op := host.NewOperation(host.ValueInOut(0, 0), host.TempInOut(buf1), host.TempInOut(buf2), host.TempInOut(buf3))
//	err = sess.InvokeCommand(ctx, hello.CmdOutput, op)
//
// Every failure is a *errors.TEEError carrying a result code and the layer
// that raised it: api for checks made here before anything crosses, comms
// for the marshaling into task memory, tee for the dispatcher and
// trusted-app for the command handler.
//
// Each Session has its own task memory, a wazero linear memory. Temporary
// buffers are copied into it before the call and the bytes the task
// produced are copied back after. Shared regions are never copied; the task
// works on the region itself while the invocation holds the region's lock.
package host
