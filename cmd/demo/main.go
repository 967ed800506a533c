package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/relstore/pagedengine/internal/engine"
	"github.com/relstore/pagedengine/internal/query"
	"github.com/relstore/pagedengine/internal/value"
)

func main() {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("Paged Relational Engine Demo")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()
	fmt.Println("This demo walks through a single-node relational engine built on")
	fmt.Println("fixed-size pages, slotted record files and a B+tree secondary index:")
	fmt.Println("  - Record File: insert/read/update/delete over slotted pages")
	fmt.Println("  - B+tree Index: ordered range scans over a secondary attribute")
	fmt.Println("  - Query Operators: scan, filter, project, aggregate, three joins")
	fmt.Println()

	dataDir, err := os.MkdirTemp("", "pagedengine-demo-")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dataDir)

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	eng, err := engine.New(engine.DefaultConfig(dataDir), logger)
	if err != nil {
		log.Fatal(err)
	}
	defer eng.Close()

	demoRecordFile(eng)
	fmt.Println()
	demoIndexScan(eng)
	fmt.Println()
	demoFilterProjectAggregate(eng)
	fmt.Println()
	demoJoins(eng)
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func demoRecordFile(eng *engine.Engine) {
	fmt.Println("### Record File: Insert / Read / Update / Delete ###")
	fmt.Println(strings.Repeat("-", 40))

	f, err := eng.CreateTable("widgets", []value.Attribute{
		{Name: "id", Type: value.IntType},
		{Name: "name", Type: value.VarCharType},
		{Name: "price", Type: value.IntType},
	})
	must(err)

	fmt.Println("\n[Writing data]")
	widgets := []struct {
		id    int32
		name  string
		price int32
	}{
		{1, "bolt", 5}, {2, "nut", 3}, {3, "washer", 1}, {4, "screw", 7}, {5, "rivet", 2},
	}
	rids := make(map[int32]value.RID)
	for _, w := range widgets {
		rid, err := f.Insert([]value.Value{value.IntValue(w.id), value.TextValue([]byte(w.name)), value.IntValue(w.price)})
		must(err)
		rids[w.id] = rid
		fmt.Printf("  INSERT id=%d name=%s price=%d -> %+v\n", w.id, w.name, w.price, rid)
	}

	fmt.Println("\n[Reading data]")
	got, err := f.Read(rids[1])
	must(err)
	fmt.Printf("  READ id=1 -> name=%s price=%d\n", got[1].String(), got[2].Int)

	fmt.Println("\n[Updating data]")
	must(f.Update(rids[1], []value.Value{value.IntValue(1), value.TextValue([]byte("bolt-xl")), value.IntValue(9)}))
	got, err = f.Read(rids[1])
	must(err)
	fmt.Printf("  UPDATE id=1 -> name=%s price=%d\n", got[1].String(), got[2].Int)

	fmt.Println("\n[Deleting data]")
	must(f.Delete(rids[5]))
	_, err = f.Read(rids[5])
	fmt.Printf("  DELETE id=5 -> read now fails: %v\n", err != nil)
}

func demoIndexScan(eng *engine.Engine) {
	fmt.Println("### B+tree Index: Range Scan ###")
	fmt.Println(strings.Repeat("-", 40))

	tr, err := eng.BuildIndex("widgets", "price")
	must(err)

	fmt.Println("\n[All widgets ordered by price]")
	it := tr.RangeScan(nil, true, nil, true)
	defer it.Close()
	for it.Next() {
		fmt.Printf("  price=%d rid=%+v\n", it.Key().Value.Int, it.Key().RID)
	}
	must(it.Err())
}

func demoFilterProjectAggregate(eng *engine.Engine) {
	fmt.Println("### Query Operators: Filter / Project / Aggregate ###")
	fmt.Println(strings.Repeat("-", 40))

	f, err := eng.OpenTable("widgets")
	must(err)

	fmt.Println("\n[Scan + filter: price >= 5]")
	s, err := query.NewTableScan(f, "", value.OpNoOp, value.Value{}, nil)
	must(err)
	filt := query.NewFilter(s, "price", value.OpGE, query.ConstOperand(value.IntValue(5)))
	proj, err := query.NewProject(filt, []string{"name", "price"})
	must(err)
	for proj.Next() {
		row := proj.Tuple()
		fmt.Printf("  %s: price=%d\n", row[0].String(), row[1].Int)
	}
	must(proj.Err())

	fmt.Println("\n[Scalar aggregate: sum(price)]")
	s2, err := query.NewTableScan(f, "", value.OpNoOp, value.Value{}, nil)
	must(err)
	agg, err := query.NewScalarAggregate(s2, "price", query.AggSum)
	must(err)
	if agg.Next() {
		fmt.Printf("  sum(price) = %s\n", agg.Tuple()[0].String())
	}
}

func demoJoins(eng *engine.Engine) {
	fmt.Println("### Query Operators: Block / Index / Grace Hash Join ###")
	fmt.Println(strings.Repeat("-", 40))

	orders, err := eng.CreateTable("orders", []value.Attribute{
		{Name: "order_id", Type: value.IntType},
		{Name: "widget_id", Type: value.IntType},
	})
	must(err)
	for i, wid := range []int32{1, 2, 3, 2, 4, 1} {
		_, err := orders.Insert([]value.Value{value.IntValue(int32(i)), value.IntValue(wid)})
		must(err)
	}

	fmt.Println("\n[Block Nested-Loop Join: orders x widgets on widget_id = id]")
	leftScan, err := query.NewTableScan(orders, "", value.OpNoOp, value.Value{}, nil)
	must(err)
	widgetsFile, err := eng.OpenTable("widgets")
	must(err)
	rightScan, err := query.NewTableScan(widgetsFile, "", value.OpNoOp, value.Value{}, nil)
	must(err)
	bnl, err := query.NewBlockNestedLoopJoin(leftScan, rightScan, "widget_id", "id", 4)
	must(err)
	for bnl.Next() {
		row := bnl.Tuple()
		fmt.Printf("  order_id=%d widget_id=%d -> name=%s\n", row[0].Int, row[1].Int, row[3].String())
	}
	must(bnl.Err())
	must(bnl.Close())

	fmt.Println("\n[Index Nested-Loop Join: orders x widgets on widget_id = id]")
	idIdx, err := eng.BuildIndex("widgets", "id")
	must(err)
	leftScan2, err := query.NewTableScan(orders, "", value.OpNoOp, value.Value{}, nil)
	must(err)
	widgetsFile2, err := eng.OpenTable("widgets")
	must(err)
	indexScan, err := query.NewIndexScan(idIdx, widgetsFile2, nil, true, nil, true)
	must(err)
	inl, err := query.NewIndexNestedLoopJoin(leftScan2, indexScan, "widget_id", "id", value.OpEQ)
	must(err)
	for inl.Next() {
		row := inl.Tuple()
		fmt.Printf("  order_id=%d widget_id=%d -> name=%s\n", row[0].Int, row[1].Int, row[3].String())
	}
	must(inl.Err())
	must(inl.Close())

	fmt.Println("\n[Grace Hash Join: orders x widgets on widget_id = id]")
	leftScan3, err := query.NewTableScan(orders, "", value.OpNoOp, value.Value{}, nil)
	must(err)
	widgetsFile3, err := eng.OpenTable("widgets")
	must(err)
	rightScan3, err := query.NewTableScan(widgetsFile3, "", value.OpNoOp, value.Value{}, nil)
	must(err)
	ghj, err := query.NewGraceHashJoin(leftScan3, rightScan3, "widget_id", "id", 4, eng.TempDir(), eng.Cache(), eng.Logger())
	must(err)
	for ghj.Next() {
		row := ghj.Tuple()
		fmt.Printf("  order_id=%d widget_id=%d -> name=%s\n", row[0].Int, row[1].Int, row[3].String())
	}
	must(ghj.Err())
	must(ghj.Close())
}
