package query

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/relstore/pagedengine/internal/catalog"
	"github.com/relstore/pagedengine/internal/pageio"
	"github.com/relstore/pagedengine/internal/recordfile"
	"github.com/relstore/pagedengine/internal/value"
	"github.com/relstore/pagedengine/internal/xerrors"
)

// ghjCounter is the external monotonically increasing counter naming
// temporary partition files uniquely per join invocation (spec §4.4).
var ghjCounter int64

// GraceHashJoin partitions both sides into temporary record files by
// hash(join_val) mod numPartitions, then probes each partition pair in
// turn with an in-memory block, the same way BlockNestedLoopJoin probes
// its block (spec §4.4). Temporary files live under dir and are removed
// by Close.
type GraceHashJoin struct {
	left, right           Iterator
	leftAttr, rightAttr   string
	numPartitions         int
	dir                   string
	cache                 *pageio.Cache
	log                   *zap.Logger
	cat                   *catalog.Memory

	leftAttrs, rightAttrs, outAttrs value.Descriptor

	leftPaths, rightPaths []string
	built                 bool

	partitionIdx int
	block        [][]value.Value
	index        map[bucketKey][]int
	rightFile    *recordfile.File
	rightSc      *recordfile.Scanner
	rightTuple   []value.Value
	matches      []int
	matchPos     int

	cur []value.Value
	err error
}

func NewGraceHashJoin(left, right Iterator, leftAttr, rightAttr string, numPartitions int, dir string, cache *pageio.Cache, log *zap.Logger) (*GraceHashJoin, error) {
	if log == nil {
		log = zap.NewNop()
	}
	leftAttrs := left.Attributes()
	rightAttrs := right.Attributes()
	if leftAttrs.IndexOf(leftAttr) < 0 {
		return nil, xerrors.New(xerrors.Logical, "query.GraceHashJoin: unknown left attribute "+leftAttr)
	}
	if rightAttrs.IndexOf(rightAttr) < 0 {
		return nil, xerrors.New(xerrors.Logical, "query.GraceHashJoin: unknown right attribute "+rightAttr)
	}
	if numPartitions <= 0 {
		numPartitions = 8
	}
	out := make(value.Descriptor, 0, len(leftAttrs)+len(rightAttrs))
	out = append(out, leftAttrs...)
	out = append(out, rightAttrs...)
	return &GraceHashJoin{
		left: left, right: right, leftAttr: leftAttr, rightAttr: rightAttr,
		numPartitions: numPartitions, dir: dir, cache: cache, log: log,
		cat: catalog.NewMemory(log), leftAttrs: leftAttrs, rightAttrs: rightAttrs, outAttrs: out,
	}, nil
}

func hashValue(v value.Value, n int) int {
	var buf []byte
	buf = v.Encode(buf)
	return int(xxh3.Hash(buf) % uint64(n))
}

func (j *GraceHashJoin) partitionTableName(side string) string {
	return "ghj-" + side
}

func (j *GraceHashJoin) partitionPath(id int64, tag string, side string, i int) string {
	return filepath.Join(j.dir, fmt.Sprintf("ghj-%d-%s-%s-%d.db", id, tag, side, i))
}

// build distributes both sides into numPartitions temporary record
// files each (spec §4.4 step 1).
func (j *GraceHashJoin) build() error {
	id := atomic.AddInt64(&ghjCounter, 1)
	tag := uuid.NewString()[:8]

	leftFiles := make([]*recordfile.File, j.numPartitions)
	rightFiles := make([]*recordfile.File, j.numPartitions)
	j.leftPaths = make([]string, j.numPartitions)
	j.rightPaths = make([]string, j.numPartitions)

	if err := j.cat.CreateTable(j.partitionTableName("left"), j.leftAttrs); err != nil {
		return err
	}
	if err := j.cat.CreateTable(j.partitionTableName("right"), j.rightAttrs); err != nil {
		return err
	}

	for i := 0; i < j.numPartitions; i++ {
		j.leftPaths[i] = j.partitionPath(id, tag, "left", i)
		j.rightPaths[i] = j.partitionPath(id, tag, "right", i)
		lf, err := recordfile.Create(j.leftPaths[i], j.partitionTableName("left"), j.cat, j.cache, j.log)
		if err != nil {
			return err
		}
		rf, err := recordfile.Create(j.rightPaths[i], j.partitionTableName("right"), j.cat, j.cache, j.log)
		if err != nil {
			return err
		}
		leftFiles[i] = lf
		rightFiles[i] = rf
	}

	leftIdx := j.leftAttrs.IndexOf(j.leftAttr)
	for j.left.Next() {
		t := j.left.Tuple()
		if t[leftIdx].IsNull {
			continue
		}
		p := hashValue(t[leftIdx], j.numPartitions)
		if _, err := leftFiles[p].Insert(t); err != nil {
			return err
		}
	}
	if err := j.left.Err(); err != nil {
		return err
	}

	rightIdx := j.rightAttrs.IndexOf(j.rightAttr)
	for j.right.Next() {
		t := j.right.Tuple()
		if t[rightIdx].IsNull {
			continue
		}
		p := hashValue(t[rightIdx], j.numPartitions)
		if _, err := rightFiles[p].Insert(t); err != nil {
			return err
		}
	}
	if err := j.right.Err(); err != nil {
		return err
	}

	var cerr error
	for i := 0; i < j.numPartitions; i++ {
		cerr = multierr.Append(cerr, leftFiles[i].Close())
		cerr = multierr.Append(cerr, rightFiles[i].Close())
	}
	j.built = true
	return cerr
}

// loadPartitionBlock reads partition i's left file fully into memory,
// indexed by join value (same shape as BlockNestedLoopJoin's block).
func (j *GraceHashJoin) loadPartitionBlock(i int) error {
	lf, err := recordfile.Open(j.leftPaths[i], j.partitionTableName("left"), j.cat, j.cache, j.log)
	if err != nil {
		return err
	}
	defer lf.Close()

	leftIdx := j.leftAttrs.IndexOf(j.leftAttr)
	sc, err := lf.Scan(nil)
	if err != nil {
		return err
	}
	j.block = j.block[:0]
	j.index = make(map[bucketKey][]int)
	for sc.Next() {
		row := sc.Tuple()
		if k, ok := bucketOf(row[leftIdx]); ok {
			j.index[k] = append(j.index[k], len(j.block))
		}
		j.block = append(j.block, row)
	}
	return sc.Err()
}

func (j *GraceHashJoin) Next() bool {
	if j.err != nil {
		return false
	}
	if !j.built {
		if err := j.build(); err != nil {
			j.err = err
			return false
		}
		j.partitionIdx = -1
	}
	rightIdx := j.rightAttrs.IndexOf(j.rightAttr)
	for {
		if j.matchPos < len(j.matches) {
			li := j.matches[j.matchPos]
			j.matchPos++
			combined := make([]value.Value, 0, len(j.leftAttrs)+len(j.rightAttrs))
			combined = append(combined, j.block[li]...)
			combined = append(combined, j.rightTuple...)
			j.cur = combined
			return true
		}
		if j.rightSc != nil && j.rightSc.Next() {
			j.rightTuple = j.rightSc.Tuple()
			k, ok := bucketOf(j.rightTuple[rightIdx])
			if !ok {
				continue
			}
			j.matches = j.index[k]
			j.matchPos = 0
			continue
		}
		if j.rightSc != nil {
			if err := j.rightSc.Err(); err != nil {
				j.err = err
				return false
			}
		}
		if j.rightFile != nil {
			j.rightFile.Close()
			j.rightFile = nil
		}
		j.partitionIdx++
		if j.partitionIdx >= j.numPartitions {
			return false
		}
		if err := j.loadPartitionBlock(j.partitionIdx); err != nil {
			j.err = err
			return false
		}
		rf, err := recordfile.Open(j.rightPaths[j.partitionIdx], j.partitionTableName("right"), j.cat, j.cache, j.log)
		if err != nil {
			j.err = err
			return false
		}
		sc, err := rf.Scan(nil)
		if err != nil {
			j.err = err
			return false
		}
		j.rightFile = rf
		j.rightSc = sc
	}
}

func (j *GraceHashJoin) Tuple() []value.Value         { return j.cur }
func (j *GraceHashJoin) Attributes() value.Descriptor { return j.outAttrs }
func (j *GraceHashJoin) Err() error                   { return j.err }

// Close releases the child iterators and removes every temporary
// partition file created for this join (spec §4.4 step 3).
func (j *GraceHashJoin) Close() error {
	var err error
	err = multierr.Append(err, j.left.Close())
	err = multierr.Append(err, j.right.Close())
	if j.rightFile != nil {
		err = multierr.Append(err, j.rightFile.Close())
	}
	for _, p := range j.leftPaths {
		if p != "" {
			os.Remove(p)
		}
	}
	for _, p := range j.rightPaths {
		if p != "" {
			os.Remove(p)
		}
	}
	return err
}
