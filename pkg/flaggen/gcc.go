// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package flaggen

var (
	GccBasic = newCatalog("gcc-basic", nil, gccBasicOptions, gccRiscvOptions)
	GccAll   = newCatalog("gcc-all", gccAllRules, gccAllOptions, gccRiscvOptions, []Option{ghost("static_opt")})
)

var gccBasicOptions = []Option{
	ghost("flto"),
	ghost("static_opt"),
}

var gccAllRules = []rule{
	{
		when: not(on("funit_at_a_time")),
		then: hide("ftoplevel_reorder"),
	},
	{
		when: not(on("funit_at_a_time")),
		then: hide("fsection_anchors"),
	},
	{
		when: off("ftoplevel_reorder"),
		then: func(rec *Record) {
			if rec.Toggle("fsection_anchors") != ToggleHidden {
				rec.SetToggle("fsection_anchors", ToggleOff)
			}
		},
	},
	{
		when: on("fwpa"),
		then: hide("fwpa"),
	},
	{
		when: on("gctf"),
		then: hide("gbtf"),
	},
	{
		// https://gcc.gnu.org/bugzilla/show_bug.cgi?id=114671
		when: on("gas_loc_support"),
		then: hide("gas_loc_support"),
	},
}

var gccRiscvOptions = []Option{
	ghost("mbig_endian"),
	ghost("mlittle_endian"),
	toggle("mcsr_check"),
	toggle("mdiv"),
	toggle("mexplicit_relocs"),
	toggle("mfdiv"),
	toggle("minline_atomics"),
	toggle("minline_strcmp"),
	toggle("minline_strlen"),
	toggle("minline_strncmp"),
	toggle("mmovcc"),
	toggle("mplt"),
	toggle("mrelax"),
	toggle("mriscv_attribute"),
	toggle("msave_restore"),
	toggle("mshorten_memrefs"),
	toggle("mstrict_align"),
	enum("mtune", append([]string{
		"rocket",
		"sifive_3_series",
		"sifive_5_series",
		"sifive_7_series",
		"sifive_p400_series",
		"sifive_p600_series",
		"thead_c906",
		"generic_ooo",
		"size",
	}, sifiveCores...)...),
	// xiangshan-nanhu is missing: https://gcc.gnu.org/bugzilla/show_bug.cgi?id=114442
	enum("mcpu", append(append([]string{}, sifiveCores...), "thead_c906")...),
	enum("mrvv_max_lmul", "dynamic", "m1", "m2", "m4", "m8"),
	enum("mrvv_vector_bits", "scalable", "zvl"),
}

var sifiveCores = []string{
	"sifive_e20",
	"sifive_e21",
	"sifive_e24",
	"sifive_e31",
	"sifive_e34",
	"sifive_e76",
	"sifive_s21",
	"sifive_s51",
	"sifive_s54",
	"sifive_s76",
	"sifive_u54",
	"sifive_u74",
	"sifive_x280",
	"sifive_p450",
	"sifive_p670",
}

var gccAllOptions = []Option{
	// Optimization options.
	toggle("faggressive_loop_optimizations"),
	toggle("fallocation_dce"),
	toggle("fallow_store_data_races"),
	toggle("fassociative_math"),
	toggle("fauto_inc_dec"),
	toggle("fbranch_count_reg"),
	toggle("fbranch_probabilities"),
	toggle("fcaller_saves"),
	toggle("fcode_hoisting"),
	toggle("fcombine_stack_adjustments"),
	toggle("fcompare_elim"),
	toggle("fconserve_stack"),
	toggle("fcprop_registers"),
	toggle("fcrossjumping"),
	toggle("fcse_follow_jumps"),
	toggle("fcse_skip_blocks"),
	toggle("fcx_fortran_rules"),
	toggle("fcx_limited_range"),
	toggle("fdata_sections"),
	toggle("fdce"),
	toggle("fdefer_pop"),
	toggle("fdelayed_branch"),
	toggle("fdelete_null_pointer_checks"),
	toggle("fdevirtualize"),
	toggle("fdevirtualize_at_ltrans"),
	toggle("fdevirtualize_speculatively"),
	toggle("fdse"),
	toggle("fearly_inlining"),
	toggle("fexpensive_optimizations"),
	toggle("ffast_math"),
	toggle("ffat_lto_objects"),
	toggle("ffinite_loops"),
	toggle("ffinite_math_only"),
	toggle("ffloat_store"),
	toggle("ffold_mem_offsets"),
	toggle("fforward_propagate"),
	toggle("ffp_int_builtin_inexact"),
	toggle("ffunction_cse"),
	toggle("ffunction_sections"),
	toggle("fgcse"),
	toggle("fgcse_after_reload"),
	toggle("fgcse_las"),
	toggle("fgcse_lm"),
	toggle("fgcse_sm"),
	toggle("fgraphite_identity"),
	toggle("fguess_branch_probability"),
	toggle("fhoist_adjacent_loads"),
	toggle("fif_conversion"),
	toggle("fif_conversion2"),
	toggle("findirect_inlining"),
	toggle("finline"),
	toggle("finline_functions"),
	toggle("finline_functions_called_once"),
	toggle("finline_small_functions"),
	toggle("fipa_bit_cp"),
	toggle("fipa_cp"),
	toggle("fipa_cp_clone"),
	toggle("fipa_icf"),
	toggle("fipa_modref"),
	toggle("fipa_profile"),
	toggle("fipa_pta"),
	toggle("fipa_pure_const"),
	toggle("fipa_ra"),
	toggle("fipa_reference"),
	toggle("fipa_reference_addressable"),
	toggle("fipa_sra"),
	toggle("fipa_stack_alignment"),
	toggle("fipa_strict_aliasing"),
	toggle("fipa_vrp"),
	toggle("fira_hoist_pressure"),
	toggle("fira_loop_pressure"),
	toggle("fira_share_save_slots"),
	toggle("fira_share_spill_slots"),
	toggle("fisolate_erroneous_paths_attribute"),
	toggle("fisolate_erroneous_paths_dereference"),
	toggle("fivopts"),
	toggle("fkeep_inline_functions"),
	toggle("fkeep_static_consts"),
	toggle("fkeep_static_functions"),
	toggle("flimit_function_alignment"),
	toggle("flive_range_shrinkage"),
	toggle("floop_block"),
	toggle("floop_interchange"),
	toggle("floop_nest_optimize"),
	toggle("floop_parallelize_all"),
	toggle("floop_strip_mine"),
	toggle("floop_unroll_and_jam"),
	toggle("flra_remat"),
	toggle("flto"),
	toggle("fmath_errno"),
	toggle("fmerge_all_constants"),
	toggle("fmerge_constants"),
	toggle("fmodulo_sched"),
	toggle("fmodulo_sched_allow_regmoves"),
	toggle("fmove_loop_invariants"),
	toggle("fmove_loop_stores"),
	toggle("fomit_frame_pointer"),
	toggle("foptimize_sibling_calls"),
	toggle("fpartial_inlining"),
	toggle("fpeel_loops"),
	toggle("fpeephole"),
	toggle("fpeephole2"),
	toggle("fpredictive_commoning"),
	toggle("fprefetch_loop_arrays"),
	toggle("fprintf_return_value"),
	toggle("fprofile_correction"),
	toggle("fprofile_partial_training"),
	toggle("fprofile_reorder_functions"),
	toggle("fprofile_use"),
	toggle("fprofile_values"),
	toggle("freciprocal_math"),
	toggle("free"),
	toggle("frename_registers"),
	toggle("freorder_blocks"),
	toggle("freorder_blocks_and_partition"),
	toggle("freorder_functions"),
	toggle("frerun_cse_after_loop"),
	toggle("freschedule_modulo_scheduled_loops"),
	toggle("frounding_math"),
	toggle("fsave_optimization_record"),
	toggle("fsched_critical_path_heuristic"),
	toggle("fsched_dep_count_heuristic"),
	toggle("fsched_group_heuristic"),
	toggle("fsched_interblock"),
	toggle("fsched_last_insn_heuristic"),
	toggle("fsched_pressure"),
	toggle("fsched_rank_heuristic"),
	toggle("fsched_spec"),
	toggle("fsched_spec_insn_heuristic"),
	toggle("fsched_spec_load"),
	toggle("fsched_spec_load_dangerous"),
	toggle("fsched2_use_superblocks"),
	toggle("fschedule_fusion"),
	toggle("fschedule_insns"),
	toggle("fschedule_insns2"),
	toggle("fsection_anchors"),
	toggle("fsel_sched_pipelining"),
	toggle("fsel_sched_pipelining_outer_loops"),
	toggle("fselective_scheduling"),
	toggle("fselective_scheduling2"),
	toggle("fsemantic_interposition"),
	toggle("fshrink_wrap"),
	toggle("fshrink_wrap_separate"),
	toggle("fsignaling_nans"),
	toggle("fsigned_zeros"),
	toggle("fsingle_precision_constant"),
	toggle("fsplit_ivs_in_unroller"),
	toggle("fsplit_loops"),
	toggle("fsplit_paths"),
	toggle("fsplit_wide_types"),
	toggle("fsplit_wide_types_early"),
	toggle("fssa_backprop"),
	toggle("fssa_phiopt"),
	toggle("fstdarg_opt"),
	toggle("fstore_merging"),
	toggle("fstrict_aliasing"),
	toggle("fthread_jumps"),
	toggle("ftoplevel_reorder"),
	toggle("ftracer"),
	toggle("ftrapping_math"),
	toggle("ftree_bit_ccp"),
	toggle("ftree_builtin_call_dce"),
	toggle("ftree_ccp"),
	toggle("ftree_ch"),
	toggle("ftree_coalesce_vars"),
	toggle("ftree_copy_prop"),
	toggle("ftree_dce"),
	toggle("ftree_dominator_opts"),
	toggle("ftree_dse"),
	toggle("ftree_forwprop"),
	toggle("ftree_fre"),
	toggle("ftree_loop_distribute_patterns"),
	toggle("ftree_loop_distribution"),
	toggle("ftree_loop_if_convert"),
	toggle("ftree_loop_im"),
	toggle("ftree_loop_ivcanon"),
	toggle("ftree_loop_linear"),
	toggle("ftree_loop_optimize"),
	toggle("ftree_loop_vectorize"),
	toggle("ftree_partial_pre"),
	toggle("ftree_phiprop"),
	toggle("ftree_pre"),
	toggle("ftree_pta"),
	toggle("ftree_reassoc"),
	toggle("ftree_scev_cprop"),
	toggle("ftree_sink"),
	toggle("ftree_slsr"),
	toggle("ftree_sra"),
	toggle("ftree_switch_conversion"),
	toggle("ftree_tail_merge"),
	toggle("ftree_ter"),
	toggle("ftree_vectorize"),
	toggle("ftree_vrp"),
	toggle("funconstrained_commons"),
	toggle("funit_at_a_time"),
	toggle("funroll_all_loops"),
	toggle("funroll_loops"),
	toggle("funsafe_math_optimizations"),
	toggle("funswitch_loops"),
	toggle("fvariable_expansion_in_unroller"),
	toggle("fvect_cost_model"),
	toggle("fvpt"),
	toggle("fweb"),
	toggle("fwhole_program"),
	toggle("fwpa"),
	toggle("fzero_initialized_in_bss"),
	toggle("fdebug_types_section"),
	// Debugging options.
	toggle("fdwarf2_cfi_asm"),
	toggle("feliminate_unused_debug_symbols"),
	toggle("feliminate_unused_debug_types"),
	toggle("femit_class_debug_always"),
	toggle("femit_struct_debug_baseonly"),
	toggle("femit_struct_debug_reduced"),
	toggle("fmerge_debug_strings"),
	toggle("fvar_tracking"),
	toggle("fvar_tracking_assignments"),
	ghost("g"),
	toggle("gas_loc_support"),
	ghost("gbtf"),
	toggle("gcolumn_info"),
	ghost("gctf"),
	toggle("gdescribe_dies"),
	ghost("gdwarf"),
	ghost("gdwarf32"),
	ghost("gdwarf64"),
	ghost("ggdb"),
	toggle("ginline_points"),
	toggle("ginternal_reset_location_views"),
	toggle("grecord_gcc_switches"),
	toggle("gsplit_dwarf"),
	toggle("gstatement_frontiers"),
	toggle("gstrict_dwarf"),
	toggle("gvariable_location_views"),
	toggle("fchecking"),
	// Developer options.
	ghost("fcompare_debug_second"),
	toggle("fdbg_cnt_list"),
	ghost("fdump_debug"),
	ghost("fdump_earlydebug"),
	ghost("fdump_ipa_all"),
	ghost("fdump_ipa_cgraph"),
	ghost("fdump_ipa_inline"),
	ghost("fdump_lang_all"),
	toggle("fdump_noaddr"),
	toggle("fdump_passes"),
	ghost("fdump_statistics"),
	ghost("fdump_tree_all"),
	toggle("fdump_unnumbered"),
	toggle("fdump_unnumbered_links"),
	toggle("flto_report"),
	toggle("flto_report_wpa"),
	toggle("fmem_report"),
	toggle("fmem_report_wpa"),
	ghost("fmultiflags"),
	toggle("fopt_info"),
	toggle("fpost_ipa_mem_report"),
	toggle("fpre_ipa_mem_report"),
	toggle("fprofile_report"),
	ghost("fstack_usage"),
	toggle("fstats"),
	toggle("ftime_report"),
	toggle("ftime_report_details"),
	toggle("fvar_tracking_assignments_toggle"),
	toggle("gtoggle"),
}
