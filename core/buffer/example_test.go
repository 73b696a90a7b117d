package buffer_test

import (
	"fmt"

	"github.com/momentics/hioload-dbuf/core/buffer"
)

func Example() {
	db, err := buffer.New(4)
	if err != nil {
		panic(err)
	}
	fmt.Println(db.Get())

	w, err := db.AcquireWriter()
	if err != nil {
		panic(err)
	}
	defer w.Release()

	cur, _ := w.Put([]byte{1, 2, 3, 4})
	fmt.Println(cur, db.Get())

	if _, err := w.Put([]byte{1, 2}); err != nil {
		fmt.Println(err)
	}

	_ = w.Clear()
	fmt.Println(db.Get())
	// Output:
	// [0 0 0 0]
	// [1 2 3 4] [1 2 3 4]
	// source length does not match buffer size (context: map[len:2 size:4])
	// [0 0 0 0]
}
