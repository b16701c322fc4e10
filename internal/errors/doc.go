// Package errors provides coded, actionable errors for the formfile CLI.
//
// Each error has a code (e.g., "E100") that maps to a category, a short
// message and a longer explanation. Errors can carry a file location, a
// hint and a wrapped cause.
//
// # Usage
//
//	err := errors.New("E100").
//	    WithLocation("formfile.json", 4, 17).
//	    WithSuggestion("Check that formfile.json is valid JSON")
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR E100: Invalid formfile.json
//	//
//	//   formfile.json:4:17
//	//
//	//        2 │   "addr": ":8080",
//	//        3 │   "tempDir": "/tmp/formfile",
//	//   →    4 │   "maxFileSize": 10MB,
//	//          │                 ^
//	//        5 │   "destDir": "uploads"
//	//        6 │ }
//	//
//	//   Hint: Check that formfile.json is valid JSON
package errors
