// Package usertask provides the two ring-3 demo programs task.New builds
// task table entries for: task1 writes an incrementing counter into a page
// of memory shared with task2 via the mmap_shared syscall, and task2 polls
// that page and logs every value it sees change. Together they exercise
// every syscall except exit (write, print_number, mmap_shared) and demonstrate
// that two independently scheduled tasks can actually share memory.
//
// Both entry points are hand-written assembly, not compiled Go functions:
// a task's code and every page of memory it touches from ring 3 must carry
// the page table's User bit, and the only way to guarantee a piece of code
// fits in one tightly controlled page - rather than wherever the Go
// compiler happens to lay it out - is to write it directly as a single
// assembly TEXT symbol, the same way the rest of this kernel's
// privilege-sensitive code is written.
package usertask

// Task1Addr returns the entry address of task1, suitable for passing to
// task.New. Implemented in usertask_386.s.
func Task1Addr() uintptr

// Task2Addr returns the entry address of task2, suitable for passing to
// task.New. Implemented in usertask_386.s.
func Task2Addr() uintptr

// Task1End returns the address one byte past the end of task1's code, so
// the caller can mark exactly its containing page(s) user-accessible.
func Task1End() uintptr

// Task2End returns the address one byte past the end of task2's code.
func Task2End() uintptr

// SharedMappingID is the mmap_shared id both demo tasks use: task1 writes
// through it, task2 reads through it. A real multi-tasking workload would
// hand out distinct ids per producer/consumer pair; these two are the only
// tasks this kernel boots, so one id suffices.
const SharedMappingID = 0
