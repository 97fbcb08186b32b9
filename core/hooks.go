package core

// BeforePutter is implemented by models that adjust or check themselves
// before they are written.
type BeforePutter interface{ BeforePut() error }

// AfterFinder is implemented by models that post-process themselves after
// they are read back from a row.
type AfterFinder interface{ AfterFind() error }
