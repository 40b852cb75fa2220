package wasm

// echoModule exports memory and solve(ptr, len) -> (ptr, len), returning its
// arguments, so every request comes back as its own response.
var echoModule = []byte{
	0x00, 0x61, 0x73, 0x6d, // WASM_BINARY_MAGIC
	0x01, 0x00, 0x00, 0x00, // WASM_BINARY_VERSION
	// Type section
	0x01, 0x08, // section id, section size (8 bytes)
	0x01,                                     // number of types
	0x60, 0x02, 0x7f, 0x7f, 0x02, 0x7f, 0x7f, // (func (param i32 i32) (result i32 i32))
	// Function section
	0x03, 0x02, // section id, section size
	0x01, // number of functions
	0x00, // function 0, type 0
	// Memory section
	0x05, 0x03, // section id, section size
	0x01,       // number of memories
	0x00, 0x01, // memory 0: min=1 page
	// Export section
	0x07, 0x12, // section id, section size (18 bytes)
	0x02,                                                 // number of exports
	0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79, 0x02, 0x00, // export "memory"
	0x05, 0x73, 0x6f, 0x6c, 0x76, 0x65, 0x00, 0x00, // export "solve"
	// Code section
	0x0a, 0x08, // section id, section size (8 bytes)
	0x01,       // number of functions
	0x06,       // function body size (6 bytes)
	0x00,       // number of local declarations
	0x20, 0x00, // local.get 0
	0x20, 0x01, // local.get 1
	0x0b, // end
}

// errorModule answers every request with {"error":"no probes"}, stored as a
// data segment at offset 1024.
var errorModule = []byte{
	0x00, 0x61, 0x73, 0x6d, // WASM_BINARY_MAGIC
	0x01, 0x00, 0x00, 0x00, // WASM_BINARY_VERSION
	// Type section
	0x01, 0x08, // section id, section size (8 bytes)
	0x01,                                     // number of types
	0x60, 0x02, 0x7f, 0x7f, 0x02, 0x7f, 0x7f, // (func (param i32 i32) (result i32 i32))
	// Function section
	0x03, 0x02, // section id, section size
	0x01, // number of functions
	0x00, // function 0, type 0
	// Memory section
	0x05, 0x03, // section id, section size
	0x01,       // number of memories
	0x00, 0x01, // memory 0: min=1 page
	// Export section
	0x07, 0x12, // section id, section size (18 bytes)
	0x02,                                                 // number of exports
	0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79, 0x02, 0x00, // export "memory"
	0x05, 0x73, 0x6f, 0x6c, 0x76, 0x65, 0x00, 0x00, // export "solve"
	// Code section
	0x0a, 0x09, // section id, section size (9 bytes)
	0x01,             // number of functions
	0x07,             // function body size (7 bytes)
	0x00,             // number of local declarations
	0x41, 0x80, 0x08, // i32.const 1024
	0x41, 0x15, // i32.const 21
	0x0b, // end
	// Data section
	0x0b, 0x1c, // section id, section size (28 bytes)
	0x01,                   // number of segments
	0x00,                   // active, memory 0
	0x41, 0x80, 0x08, 0x0b, // offset: i32.const 1024, end
	0x15, // 21 bytes follow
	0x7b, 0x22, 0x65, 0x72, 0x72, 0x6f, 0x72, 0x22, 0x3a, 0x22, 0x6e, // {"error":"n
	0x6f, 0x20, 0x70, 0x72, 0x6f, 0x62, 0x65, 0x73, 0x22, 0x7d, // o probes"}
}
