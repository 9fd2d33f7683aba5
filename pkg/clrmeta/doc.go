// Package clrmeta reads the structured definition of a managed (.NET)
// assembly: its identity, the assemblies it references and the types it
// defines and imports.
//
// Only the parts of ECMA-335 needed to inspect an assembly are decoded:
//
//	PE image ─► CLI header ─► metadata root ─► #~ tables, #Strings, #Blob
//
// The reader never executes or disassembles code. It is safe to call on
// untrusted input; malformed images return an error rather than panicking.
//
// # Usage
//
//	asm, err := clrmeta.ReadBytes(dllBytes)
//	if err != nil {
//	    return err
//	}
//	for _, ref := range asm.References {
//	    fmt.Println(ref.FullName())
//	}
package clrmeta
