package keygen

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const (
	sequenceBits = 12
	machineBits  = 10

	maxSequence = 1<<sequenceBits - 1
	maxMachine  = 1<<machineBits - 1
)

// 2020-01-01 00:00:00 UTC
var defaultEpoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

type SnowflakeOptions struct {
	// 机器 ID，0-1023，为空时取本机 IPv4 地址的低 10 位
	MachineID *int64 `cfg:"machineID" validate:"omitempty,min=0,max=1023"`

	// 起始时间，为空时使用 2020-01-01
	Epoch time.Time `cfg:"epoch"`
}

// Snowflake 1 位符号 + 41 位毫秒时间戳 + 10 位机器 ID + 12 位序列号，与表无关
type Snowflake struct {
	mu        sync.Mutex
	machineID int64
	epoch     int64
	lastMilli int64
	sequence  int64
	now       func() time.Time
}

func NewSnowflakeWithOptions(options *SnowflakeOptions) (*Snowflake, error) {
	if options == nil {
		options = &SnowflakeOptions{}
	}

	machineID := machineIDFromIP()
	if options.MachineID != nil {
		machineID = *options.MachineID
	}
	if machineID < 0 || machineID > maxMachine {
		return nil, errors.Errorf("machine id %d out of range [0, %d]", machineID, maxMachine)
	}

	epoch := defaultEpoch
	if !options.Epoch.IsZero() {
		epoch = options.Epoch
	}

	return &Snowflake{
		machineID: machineID,
		epoch:     epoch.UnixMilli(),
		lastMilli: -1,
		now:       time.Now,
	}, nil
}

func (s *Snowflake) Next(ctx context.Context, table string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	milli := s.now().UnixMilli() - s.epoch
	if milli < 0 {
		return 0, errors.New("clock is before snowflake epoch")
	}
	// 时钟回拨时沿用上一个时间戳
	if milli < s.lastMilli {
		milli = s.lastMilli
	}

	if milli == s.lastMilli {
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			// 当前毫秒的序列号用完，借用下一毫秒
			milli++
		}
	} else {
		s.sequence = 0
	}
	s.lastMilli = milli

	id := milli<<(machineBits+sequenceBits) | s.machineID<<sequenceBits | s.sequence
	if id == 0 {
		// 0 表示未保存，不能作为主键
		s.sequence = 1
		id = 1
	}
	return id, nil
}

func machineIDFromIP() int64 {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return 0
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ip := ipnet.IP.To4(); ip != nil {
				return (int64(ip[2])<<8 | int64(ip[3])) & maxMachine
			}
		}
	}
	return 0
}
