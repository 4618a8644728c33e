package p4dctl

import (
	"context"
	"fmt"
	"os"
	"testing"
)

// BenchmarkParsePID measures PID file decoding
func BenchmarkParsePID(b *testing.B) {
	data := []byte("123456\n")

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if ParsePID(data) != 123456 {
			b.Fatal("bad parse")
		}
	}
}

// BenchmarkMergeEnv measures building a child environment from the host's
func BenchmarkMergeEnv(b *testing.B) {
	base := os.Environ()
	port, root := "ssl:1666", "/srv/master/root"
	global := map[string]*string{"P4DEBUG": nil}
	svc := map[string]*string{EnvPort: &port, EnvRoot: &root}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = mergeEnv(base, global, svc)
	}
}

// BenchmarkOperationString measures Operation.String() performance
func BenchmarkOperationString(b *testing.B) {
	ops := []Operation{
		OpStart,
		OpStop,
		OpRestart,
		OpReload,
		OpKill,
		OpExec,
		OpStatus,
	}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = ops[i%len(ops)].String()
	}
}

// BenchmarkManagerStatus measures a status fan-out across many services
func BenchmarkManagerStatus(b *testing.B) {
	for _, n := range []int{10, 100} {
		b.Run(fmt.Sprintf("services=%d", n), func(b *testing.B) {
			procs := newMockProcesses()
			reg := NewRegistry(b.TempDir(), WithServiceOptions(WithProcesses(procs)))
			for i := 0; i < n; i++ {
				svc, err := reg.CreateService(testConfig(fmt.Sprintf("svc%03d", i)))
				if err != nil {
					b.Fatal(err)
				}
				if i%2 == 0 {
					if err := svc.Start(context.Background(), true); err != nil {
						b.Fatal(err)
					}
				}
			}
			mgr := NewManager(reg)
			ctx := context.Background()

			b.ResetTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				report, err := mgr.Status(ctx, Selector{All: true})
				if err != nil || report.Succeeded() != (n+1)/2 {
					b.Fatalf("unexpected report: %d ok, err %v", report.Succeeded(), err)
				}
			}
		})
	}
}
