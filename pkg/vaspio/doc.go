/*
Package vaspio reads and writes the solver's working-directory documents.

It covers the settings document (INCAR), structures (POSCAR/CONTCAR), k-point
sampling (KPOINTS), the XML run record (vasprun.xml) and the per-ion magnetic
moments of OUTCAR. Only the subset the job engine consumes is modelled; unknown
content is either preserved verbatim or ignored.
*/
package vaspio
