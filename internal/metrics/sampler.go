package metrics

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"status-agent/internal/hostinfo"
)

// Options selects which metrics are sampled. Disabled metrics report zero.
type Options struct {
	CPU     bool
	Memory  bool
	Network bool
	Disk    bool
	GPU     bool

	GPUInterval time.Duration
}

// Sampler produces one Snapshot per tick. Previous counter readings are
// kept so rates can be derived; a probe that fails leaves its fields at
// the last known value.
type Sampler struct {
	src  Source
	host hostinfo.Provider
	opts Options

	mu        sync.Mutex
	last      Snapshot
	tick      uint64
	prevNet   NetCounters
	prevNetAt time.Time
	haveNet   bool
	prevDisk  DiskCounters
	prevDskAt time.Time
	haveDisk  bool
	lastGPUAt time.Time
	warnings  map[string]*rate.Sometimes
}

func NewSampler(src Source, host hostinfo.Provider, opts Options) *Sampler {
	if opts.GPUInterval <= 0 {
		opts.GPUInterval = 5 * time.Second
	}
	s := &Sampler{
		src:      src,
		host:     host,
		opts:     opts,
		warnings: make(map[string]*rate.Sometimes),
	}
	s.last.CPUName = hostinfo.Unknown
	s.last.CPUArch = hostinfo.Unknown
	s.last.OSName = hostinfo.Unknown
	s.last.KernelVersion = hostinfo.Unknown
	s.last.GPUName = GPUUnknown
	if !opts.GPU {
		s.last.GPUName = GPUDisabled
	}
	return s
}

// Current returns the latest Snapshot without sampling.
func (s *Sampler) Current() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Init resolves the fields that do not change while the process runs.
func (s *Sampler) Init(ctx context.Context) {
	info := s.host.Static(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.last.CPUName = info.CPUName
	s.last.CPUArch = info.CPUArch
	s.last.CPUCores = info.CPUCores
	s.last.CPUBaseFreqGHz = info.CPUBaseFreqGHz
	s.last.IsVirtualMachine = info.IsVirtualMachine
	s.last.OSName = info.OSName
	s.last.KernelVersion = info.KernelVersion
}

// Tick samples every enabled metric at now and returns the new Snapshot.
func (s *Sampler) Tick(ctx context.Context, now time.Time) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.last
	s.tick++
	snap.Tick = s.tick
	snap.TakenAt = now

	s.sampleCPU(ctx, &snap)
	s.sampleMemory(ctx, &snap)
	s.sampleNetwork(ctx, now, &snap)
	s.sampleDisk(ctx, now, &snap)
	s.sampleUptime(ctx, now, &snap)
	s.sampleGPU(ctx, now, &snap)

	s.last = snap
	return snap
}

func (s *Sampler) sampleCPU(ctx context.Context, snap *Snapshot) {
	if !s.opts.CPU {
		snap.CPUUsagePercent = 0
		return
	}
	usage, err := s.src.CPUPercent(ctx)
	if err != nil {
		s.warn("cpu", err)
		return
	}
	snap.CPUUsagePercent = clampFloat(usage, 0, 100)
}

func (s *Sampler) sampleMemory(ctx context.Context, snap *Snapshot) {
	if !s.opts.Memory {
		snap.MemTotalBytes, snap.MemUsedBytes = 0, 0
		return
	}
	usage, err := s.src.Memory(ctx)
	if err != nil {
		s.warn("memory", err)
		return
	}
	snap.MemTotalBytes = usage.Total
	snap.MemUsedBytes = usage.Used
}

// sampleNetwork always refreshes the cumulative totals; rates are only
// derived when network monitoring is enabled.
func (s *Sampler) sampleNetwork(ctx context.Context, now time.Time, snap *Snapshot) {
	if !s.opts.Network {
		snap.NetSentRateMbps, snap.NetRecvRateMbps = 0, 0
	}

	counters, err := s.src.Network(ctx)
	if err != nil {
		s.warn("network", err)
		return
	}

	snap.NetTotalSentBytes = counters.Sent
	snap.NetTotalRecvBytes = counters.Recv

	if s.opts.Network {
		if s.haveNet {
			elapsed := now.Sub(s.prevNetAt)
			snap.NetSentRateMbps = CounterDelta(s.prevNet.Sent, counters.Sent, elapsed, NetworkFactor)
			snap.NetRecvRateMbps = CounterDelta(s.prevNet.Recv, counters.Recv, elapsed, NetworkFactor)
		} else {
			snap.NetSentRateMbps, snap.NetRecvRateMbps = 0, 0
		}
	}

	s.prevNet = counters
	s.prevNetAt = now
	s.haveNet = true
}

func (s *Sampler) sampleDisk(ctx context.Context, now time.Time, snap *Snapshot) {
	if !s.opts.Disk {
		snap.DiskReadRateMBs, snap.DiskWriteRateMBs = 0, 0
		snap.RootDiskTotalBytes, snap.RootDiskUsedBytes = 0, 0
		s.haveDisk = false
		return
	}

	if usage, err := s.src.RootDisk(ctx); err != nil {
		s.warn("root disk", err)
	} else {
		snap.RootDiskTotalBytes = usage.Total
		snap.RootDiskUsedBytes = usage.Used
	}

	counters, err := s.src.Disk(ctx)
	if err != nil {
		s.warn("disk io", err)
		return
	}

	if s.haveDisk {
		elapsed := now.Sub(s.prevDskAt)
		snap.DiskReadRateMBs = CounterDelta(s.prevDisk.Read, counters.Read, elapsed, DiskFactor)
		snap.DiskWriteRateMBs = CounterDelta(s.prevDisk.Write, counters.Write, elapsed, DiskFactor)
	} else {
		snap.DiskReadRateMBs, snap.DiskWriteRateMBs = 0, 0
	}

	s.prevDisk = counters
	s.prevDskAt = now
	s.haveDisk = true
}

func (s *Sampler) sampleUptime(ctx context.Context, now time.Time, snap *Snapshot) {
	boot, err := s.src.BootTime(ctx)
	if err != nil {
		s.warn("uptime", err)
		return
	}
	hours := now.Sub(boot).Hours()
	if hours < 0 {
		hours = 0
	}
	snap.SystemUptimeHours = hours
}

func (s *Sampler) sampleGPU(ctx context.Context, now time.Time, snap *Snapshot) {
	if !s.opts.GPU {
		snap.GPUName = GPUDisabled
		snap.GPUUsagePercent = 0
		return
	}
	if !s.lastGPUAt.IsZero() && now.Sub(s.lastGPUAt) < s.opts.GPUInterval {
		return
	}
	s.lastGPUAt = now

	gpu, err := s.host.GPU(ctx)
	if err != nil {
		s.warn("gpu", err)
		return
	}
	if gpu.Name == "" {
		gpu.Name = GPUUnknown
	}
	snap.GPUName = gpu.Name
	snap.GPUUsagePercent = clampFloat(gpu.UsagePercent, 0, 100)
}

// warn logs a probe failure at most once a minute per probe.
func (s *Sampler) warn(probe string, err error) {
	w, ok := s.warnings[probe]
	if !ok {
		w = &rate.Sometimes{First: 1, Interval: time.Minute}
		s.warnings[probe] = w
	}
	w.Do(func() {
		log.Printf("sampler: %s probe failed: %v", probe, err)
	})
}

// Run ticks every interval and publishes each Snapshot to store until ctx
// is cancelled.
func (s *Sampler) Run(ctx context.Context, interval time.Duration, store *Store) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			snap := s.Tick(ctx, now)
			if ctx.Err() != nil {
				return
			}
			store.Publish(snap)
		}
	}
}
